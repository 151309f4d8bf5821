package directory

import (
	"context"
	"encoding/json"

	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/rpc"
)

// RegisterMethods exposes d on registry as RegisterNode, GetNodeRegistry,
// RegisterUser and LookupUser.
func (d *Directory) RegisterMethods(registry *rpc.MethodRegistry) {
	registry.Register(protocol.MethodRegisterNode, rpc.RPCHandlerFunc(d.handleRegisterNode))
	registry.Register(protocol.MethodGetNodeRegistry, rpc.RPCHandlerFunc(d.handleGetNodeRegistry))
	registry.Register(protocol.MethodRegisterUser, rpc.RPCHandlerFunc(d.handleRegisterUser))
	registry.Register(protocol.MethodLookupUser, rpc.RPCHandlerFunc(d.handleLookupUser))
}

func (d *Directory) handleRegisterNode(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.RegisterNodeParams
	if err := rpc.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := d.Register(p.NodeID, p.PublicKey, p.Address); err != nil {
		return nil, err
	}
	return protocol.Accepted{Message: "Node registered successfully"}, nil
}

func (d *Directory) handleGetNodeRegistry(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return protocol.NodeRegistry{Nodes: d.List()}, nil
}

func (d *Directory) handleRegisterUser(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.RegisterUserParams
	if err := rpc.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := d.RegisterUser(p.UserID, p.Address); err != nil {
		return nil, err
	}
	return protocol.Accepted{Message: "User registered successfully"}, nil
}

func (d *Directory) handleLookupUser(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p protocol.LookupUserParams
	if err := rpc.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	return d.LookupUser(p.UserID)
}
