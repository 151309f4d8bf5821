package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/rpc"
)

func (r *Relay) registerMethods() {
	r.registry.Register(protocol.MethodDeliver, rpc.RPCHandlerFunc(r.handleDeliver))
	r.registry.Register(protocol.MethodGetLastReceivedEncryptedMessage, rpc.RPCHandlerFunc(
		func(context.Context, json.RawMessage) (interface{}, error) {
			b, _ := r.LastReceivedEncrypted()
			return protocol.BytesResult{Result: b}, nil
		}))
	r.registry.Register(protocol.MethodGetLastReceivedDecryptedMessage, rpc.RPCHandlerFunc(
		func(context.Context, json.RawMessage) (interface{}, error) {
			b, _ := r.LastReceivedDecrypted()
			return protocol.BytesResult{Result: b}, nil
		}))
	r.registry.Register(protocol.MethodGetLastMessageDestination, rpc.RPCHandlerFunc(
		func(context.Context, json.RawMessage) (interface{}, error) {
			addr, ok := r.LastMessageDestination()
			if !ok {
				return protocol.StringResult{}, nil
			}
			s := addr.String()
			return protocol.StringResult{Result: &s}, nil
		}))
	r.registry.Register(protocol.MethodStatus, rpc.RPCHandlerFunc(
		func(context.Context, json.RawMessage) (interface{}, error) {
			return r.Status(), nil
		}))
}

// handleDeliver peels synchronously, so rate limit, validation and crypto
// errors reach the caller. The forward runs on its own goroutine; the caller
// is answered accepted once it finishes or the ack window closes, whichever
// comes first. Forward failures are never reported upstream.
func (r *Relay) handleDeliver(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.DeliverParams
	if err := rpc.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	next, remainder, err := r.accept(p.Payload)
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		done <- r.forward(ctx, next, remainder)
	}()

	timer := time.NewTimer(r.ackWindow())
	defer timer.Stop()
	select {
	case err := <-done:
		if err == nil {
			return protocol.Accepted{Message: "Message forwarded"}, nil
		}
	case <-timer.C:
	}
	return protocol.Accepted{Message: "Message accepted"}, nil
}

func (r *Relay) ackWindow() time.Duration {
	return r.cfg.ForwardTimeout / 2
}
