package directory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onion/lib/address"
	"github.com/go-i2p/go-onion/lib/crypto"
	"github.com/go-i2p/go-onion/lib/instrument"
	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/rpc"
)

// Config configures a directory node.
type Config struct {
	// Listen is the "host:port" endpoint to bind; port 0 picks a free port.
	Listen  string
	Suite   string
	Server  rpc.ServerConfig
	Metrics bool
}

// Node serves a Directory over JSON-RPC.
type Node struct {
	dir      *Directory
	registry *rpc.MethodRegistry
	server   *rpc.Server
	listen   string

	mu      sync.Mutex
	addr    address.Address
	serving bool
}

// NewNode builds a directory node. It does not listen until Start.
func NewNode(cfg Config) (*Node, error) {
	provider, err := crypto.NewProvider(cfg.Suite)
	if err != nil {
		return nil, err
	}

	var metrics *instrument.Metrics
	if cfg.Metrics {
		metrics = instrument.New("directory", 0)
	}

	n := &Node{
		dir:      New(provider, metrics),
		registry: rpc.NewMethodRegistry(),
		listen:   cfg.Listen,
	}
	n.dir.RegisterMethods(n.registry)
	n.registry.Register(protocol.MethodStatus, rpc.RPCHandlerFunc(func(context.Context, json.RawMessage) (interface{}, error) {
		return n.Status(), nil
	}))

	serverCfg := cfg.Server
	serverCfg.Metrics = metrics.Handler()
	n.server = rpc.NewServer(serverCfg, n.registry)
	return n, nil
}

// Start binds the listener and begins serving.
func (n *Node) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l, err := rpc.Listen(n.listen)
	if err != nil {
		return err
	}
	addr, err := address.FromEndpoint(l.Addr().String())
	if err != nil {
		l.Close()
		return oops.Wrapf(err, "directory listener")
	}
	if err := n.server.Serve(l); err != nil {
		l.Close()
		return err
	}

	n.mu.Lock()
	n.addr = addr
	n.serving = true
	n.mu.Unlock()

	log.WithFields(logger.Fields{
		"at":       "(Node).Start",
		"endpoint": addr.Endpoint(),
		"suite":    n.dir.Suite(),
	}).Info("Directory serving")
	return nil
}

// Close stops serving.
func (n *Node) Close() error {
	n.mu.Lock()
	n.serving = false
	n.mu.Unlock()
	return n.server.Stop()
}

// Directory returns the registry served by n.
func (n *Node) Directory() *Directory {
	return n.dir
}

// Address returns the bound address; it is empty before Start.
func (n *Node) Address() address.Address {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addr
}

// Endpoint returns the bound "ip:port".
func (n *Node) Endpoint() string {
	return n.Address().Endpoint()
}

func (n *Node) Status() protocol.Status {
	n.mu.Lock()
	defer n.mu.Unlock()

	state := "new"
	if n.serving {
		state = "serving"
	}
	return protocol.Status{
		Role:    "directory",
		Address: n.addr.String(),
		State:   state,
		Suite:   n.dir.Suite(),
		Methods: n.registry.ListMethods(),
	}
}
