package directory

import (
	"context"
	"time"

	"github.com/go-i2p/go-onion/lib/address"
	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/rpc"
)

// Registry is the directory as seen by relays and clients.
type Registry interface {
	RegisterNode(ctx context.Context, nodeID int, publicKey string, addr address.Address) error
	Nodes(ctx context.Context) ([]protocol.NodeRecord, error)
	RegisterUser(ctx context.Context, userID int, addr address.Address) error
	LookupUser(ctx context.Context, userID int) (protocol.UserRecord, error)
}

// Remote is a Registry backed by a directory node reached over JSON-RPC.
// Transport failures wrap protocol.ErrDirectoryUnreachable.
type Remote struct {
	caller *rpc.Caller
}

var _ Registry = (*Remote)(nil)

// NewRemote returns a Remote for the directory listening on endpoint
// ("host:port").
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	return &Remote{
		caller: rpc.NewCaller(rpc.EndpointURL(endpoint), timeout, protocol.ErrDirectoryUnreachable),
	}
}

func (r *Remote) RegisterNode(ctx context.Context, nodeID int, publicKey string, addr address.Address) error {
	params := protocol.RegisterNodeParams{NodeID: nodeID, PublicKey: publicKey, Address: addr.String()}
	return r.caller.Call(ctx, protocol.MethodRegisterNode, params, nil)
}

func (r *Remote) Nodes(ctx context.Context) ([]protocol.NodeRecord, error) {
	var reg protocol.NodeRegistry
	if err := r.caller.Call(ctx, protocol.MethodGetNodeRegistry, nil, &reg); err != nil {
		return nil, err
	}
	return reg.Nodes, nil
}

func (r *Remote) RegisterUser(ctx context.Context, userID int, addr address.Address) error {
	params := protocol.RegisterUserParams{UserID: userID, Address: addr.String()}
	return r.caller.Call(ctx, protocol.MethodRegisterUser, params, nil)
}

func (r *Remote) LookupUser(ctx context.Context, userID int) (protocol.UserRecord, error) {
	var rec protocol.UserRecord
	err := r.caller.Call(ctx, protocol.MethodLookupUser, protocol.LookupUserParams{UserID: userID}, &rec)
	return rec, err
}

// Local adapts an in-process Directory to Registry.
type Local struct {
	Dir *Directory
}

var _ Registry = Local{}

func (l Local) RegisterNode(_ context.Context, nodeID int, publicKey string, addr address.Address) error {
	return l.Dir.Register(nodeID, publicKey, addr.String())
}

func (l Local) Nodes(context.Context) ([]protocol.NodeRecord, error) {
	return l.Dir.List(), nil
}

func (l Local) RegisterUser(_ context.Context, userID int, addr address.Address) error {
	return l.Dir.RegisterUser(userID, addr.String())
}

func (l Local) LookupUser(_ context.Context, userID int) (protocol.UserRecord, error) {
	return l.Dir.LookupUser(userID)
}
