package rpc

import (
	"context"
	"net/http"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/ybbus/jsonrpc/v2"

	"github.com/go-i2p/go-onion/lib/protocol"
)

// Caller invokes JSON-RPC methods on one remote node. Every call is bounded
// by the caller's timeout and by the context deadline, whichever is sooner.
//
// Errors returned by the remote node come back as the matching protocol
// sentinel, so errors.Is works across the hop. Transport failures (refused
// connection, timeout, non-200 status) wrap the Caller's unreachable
// sentinel.
type Caller struct {
	url         string
	timeout     time.Duration
	unreachable error
}

// NewCaller returns a Caller for the JSON-RPC endpoint at url. unreachable is
// the sentinel reported when the endpoint cannot be reached, typically
// protocol.ErrNextHopUnreachable or protocol.ErrDirectoryUnreachable.
func NewCaller(url string, timeout time.Duration, unreachable error) *Caller {
	return &Caller{
		url:         url,
		timeout:     timeout,
		unreachable: unreachable,
	}
}

// URL returns the endpoint this Caller talks to.
func (c *Caller) URL() string {
	return c.url
}

type callResult struct {
	resp *jsonrpc.RPCResponse
	err  error
}

// Call invokes method with params (nil for none) and decodes the result into
// out when out is non-nil.
func (c *Caller) Call(ctx context.Context, method string, params, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return oops.Wrapf(c.unreachable, "%s on %s: %v", method, c.url, err)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	client := jsonrpc.NewClientWithOpts(c.url, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: timeout},
	})

	done := make(chan callResult, 1)
	go func() {
		var r callResult
		if params == nil {
			r.resp, r.err = client.Call(method)
		} else {
			r.resp, r.err = client.Call(method, params)
		}
		done <- r
	}()

	var r callResult
	select {
	case <-ctx.Done():
		return c.transportError(method, ctx.Err())
	case r = <-done:
	}

	if r.err != nil {
		return c.transportError(method, r.err)
	}
	if r.resp.Error != nil {
		return c.remoteError(method, r.resp.Error)
	}
	if out == nil {
		return nil
	}
	if err := r.resp.GetObject(out); err != nil {
		return oops.Wrapf(protocol.ErrValidation, "decode %s result from %s: %v", method, c.url, err)
	}
	return nil
}

func (c *Caller) transportError(method string, err error) error {
	log.WithFields(logger.Fields{
		"at":     "(Caller).Call",
		"method": method,
		"url":    c.url,
		"reason": err.Error(),
	}).Warn("JSON-RPC call failed")
	return oops.Wrapf(c.unreachable, "%s on %s: %v", method, c.url, err)
}

func (c *Caller) remoteError(method string, remote *jsonrpc.RPCError) error {
	if sentinel := protocol.FromCode(remote.Code); sentinel != nil {
		return oops.Wrapf(sentinel, "%s on %s: %s", method, c.url, remote.Message)
	}
	return oops.Wrapf(NewRPCErrorWithData(remote.Code, remote.Message, remote.Data), "%s on %s", method, c.url)
}

// EndpointURL returns the JSON-RPC URL of a node listening on endpoint
// ("host:port").
func EndpointURL(endpoint string) string {
	return "http://" + endpoint + "/jsonrpc"
}
