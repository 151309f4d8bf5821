package rpc

import (
	"context"
	"time"

	"github.com/go-i2p/go-onion/lib/address"
	"github.com/go-i2p/go-onion/lib/protocol"
)

// Forwarder hands a payload to the node at an address.
type Forwarder interface {
	Forward(ctx context.Context, to address.Address, payload []byte) error
}

// DeliverForwarder calls Deliver on the node at the target address. Relays
// and clients both answer Deliver, so the sender never needs to know which
// kind of node it is talking to.
type DeliverForwarder struct {
	Timeout time.Duration
}

var _ Forwarder = DeliverForwarder{}

// Forward delivers payload to the node at to. It never retries. A node that
// cannot be reached yields protocol.ErrNextHopUnreachable; an error reported
// by the node comes back as its protocol sentinel.
func (f DeliverForwarder) Forward(ctx context.Context, to address.Address, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	caller := NewCaller(to.URL(), f.Timeout, protocol.ErrNextHopUnreachable)
	return caller.Call(ctx, protocol.MethodDeliver, protocol.DeliverParams{Payload: payload}, nil)
}
