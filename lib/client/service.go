package client

import (
	"context"
	"encoding/json"

	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/rpc"
)

func (c *Client) registerMethods() {
	r := c.registry
	r.Register(protocol.MethodSendMessage, rpc.RPCHandlerFunc(c.handleSendMessage))
	r.Register(protocol.MethodDeliver, rpc.RPCHandlerFunc(c.handleDeliver))
	r.Register(protocol.MethodGetLastReceivedMessage, rpc.RPCHandlerFunc(
		func(context.Context, json.RawMessage) (interface{}, error) {
			return stringResult(c.LastReceivedMessage()), nil
		}))
	r.Register(protocol.MethodGetLastSentMessage, rpc.RPCHandlerFunc(
		func(context.Context, json.RawMessage) (interface{}, error) {
			return stringResult(c.LastSentMessage()), nil
		}))
	r.Register(protocol.MethodGetLastCircuit, rpc.RPCHandlerFunc(
		func(context.Context, json.RawMessage) (interface{}, error) {
			ids, _ := c.LastCircuit()
			return protocol.CircuitResult{Result: ids}, nil
		}))
	r.Register(protocol.MethodStatus, rpc.RPCHandlerFunc(
		func(context.Context, json.RawMessage) (interface{}, error) {
			return c.Status(), nil
		}))
}

func stringResult(s string, ok bool) protocol.StringResult {
	if !ok {
		return protocol.StringResult{}
	}
	return protocol.StringResult{Result: &s}
}

func (c *Client) handleSendMessage(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.SendMessageParams
	if err := rpc.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := c.SendMessage(ctx, p.DestinationUserID, p.Message); err != nil {
		return nil, err
	}
	return protocol.Accepted{Message: "Message sent successfully"}, nil
}

func (c *Client) handleDeliver(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.DeliverParams
	if err := rpc.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := c.ReceiveMessage(p.Payload); err != nil {
		return nil, err
	}
	return protocol.Accepted{Message: "Message received"}, nil
}
