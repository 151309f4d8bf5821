package client

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onion/lib/address"
	"github.com/go-i2p/go-onion/lib/circuit"
	"github.com/go-i2p/go-onion/lib/crypto"
	"github.com/go-i2p/go-onion/lib/directory"
	"github.com/go-i2p/go-onion/lib/instrument"
	"github.com/go-i2p/go-onion/lib/onion"
	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/rpc"
)

var log = logger.GetGoI2PLogger()

// Config configures a client.
type Config struct {
	UserID int
	// Listen is the "host:port" endpoint messages are delivered to.
	Listen string
	Suite  string

	// PathLength is the number of relays per circuit; zero means
	// protocol.DefaultPathLength.
	PathLength     int
	ForwardTimeout time.Duration

	Server  rpc.ServerConfig
	Metrics bool
}

// Option customizes a Client.
type Option func(*Client)

// WithForwarder replaces the JSON-RPC forwarder used to reach entry relays.
func WithForwarder(f rpc.Forwarder) Option {
	return func(c *Client) {
		c.forwarder = f
	}
}

// Client sends messages through freshly selected circuits and receives
// messages delivered by exit relays.
type Client struct {
	cfg        Config
	pathLength int
	provider   crypto.Provider
	directory  directory.Registry
	forwarder  rpc.Forwarder
	metrics    *instrument.Metrics
	registry   *rpc.MethodRegistry
	server     *rpc.Server

	started atomic.Bool
	serving atomic.Bool

	addrMu sync.RWMutex
	addr   address.Address

	mu           sync.RWMutex
	lastSent     *string
	lastReceived *string
	lastCircuit  []int
}

// New creates a client that resolves relays and users through dir.
func New(cfg Config, dir directory.Registry, opts ...Option) (*Client, error) {
	if cfg.UserID <= 0 {
		return nil, oops.Wrapf(protocol.ErrValidation, "user id must be positive, got %d", cfg.UserID)
	}
	pathLength := cfg.PathLength
	if pathLength == 0 {
		pathLength = protocol.DefaultPathLength
	}
	if pathLength < 1 {
		return nil, oops.Wrapf(protocol.ErrValidation, "path length must be at least 1, got %d", pathLength)
	}
	provider, err := crypto.NewProvider(cfg.Suite)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:        cfg,
		pathLength: pathLength,
		provider:   provider,
		directory:  dir,
		forwarder:  rpc.DeliverForwarder{Timeout: cfg.ForwardTimeout},
		registry:   rpc.NewMethodRegistry(),
	}
	if cfg.Metrics {
		c.metrics = instrument.New("client", cfg.UserID)
	}
	for _, opt := range opts {
		opt(c)
	}

	c.registerMethods()
	serverCfg := cfg.Server
	serverCfg.Metrics = c.metrics.Handler()
	c.server = rpc.NewServer(serverCfg, c.registry)
	return c, nil
}

// Start binds the client's listener, registers its address with the
// directory and begins serving.
func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return oops.Errorf("client %d already started", c.cfg.UserID)
	}

	l, err := rpc.Listen(c.cfg.Listen)
	if err != nil {
		c.started.Store(false)
		return err
	}
	addr, err := address.FromEndpoint(l.Addr().String())
	if err != nil {
		l.Close()
		c.started.Store(false)
		return oops.Wrapf(err, "client %d listener", c.cfg.UserID)
	}

	if err := c.directory.RegisterUser(ctx, c.cfg.UserID, addr); err != nil {
		l.Close()
		c.started.Store(false)
		log.WithFields(logger.Fields{
			"at":      "(Client).Start",
			"user_id": c.cfg.UserID,
			"reason":  err.Error(),
		}).Error("Directory rejected registration")
		return err
	}

	c.addrMu.Lock()
	c.addr = addr
	c.addrMu.Unlock()

	if err := c.server.Serve(l); err != nil {
		l.Close()
		return err
	}
	c.serving.Store(true)

	log.WithFields(logger.Fields{
		"at":       "(Client).Start",
		"user_id":  c.cfg.UserID,
		"endpoint": addr.Endpoint(),
	}).Info("Client serving")
	return nil
}

// Close stops serving.
func (c *Client) Close() error {
	c.serving.Store(false)
	return c.server.Stop()
}

// SendMessage sends message to the user destinationID through a new circuit.
//
// The directory snapshot is read first; a circuit is selected from it before
// the destination is resolved, so ErrInsufficientNodes is reported without
// any relay traffic. Delivery is attempted once.
func (c *Client) SendMessage(ctx context.Context, destinationID int, message string) error {
	if message == "" {
		return oops.Wrapf(protocol.ErrValidation, "message is empty")
	}

	nodes, err := c.directory.Nodes(ctx)
	if err != nil {
		return c.sendFailed(destinationID, "fetch node registry", err)
	}

	path, err := circuit.Select(nodes, c.pathLength)
	if err != nil {
		return c.sendFailed(destinationID, "select circuit", err)
	}

	dest, err := c.directory.LookupUser(ctx, destinationID)
	if err != nil {
		return c.sendFailed(destinationID, "resolve destination", err)
	}
	destAddr, err := address.Parse(dest.Address)
	if err != nil {
		return c.sendFailed(destinationID, "destination address", err)
	}

	payload, err := onion.Build(c.provider, []byte(message), destAddr, path)
	if err != nil {
		return c.sendFailed(destinationID, "build onion", err)
	}

	entry := address.Address(path[0].Address)
	if err := c.forwarder.Forward(ctx, entry, payload); err != nil {
		if !errors.Is(err, protocol.ErrNextHopUnreachable) {
			err = oops.Wrapf(protocol.ErrNextHopUnreachable, "entry relay %d rejected onion: %v", path[0].NodeID, err)
		}
		return c.sendFailed(destinationID, "deliver to entry relay", err)
	}

	ids := circuit.IDs(path)
	c.mu.Lock()
	c.lastSent = &message
	c.lastCircuit = ids
	c.mu.Unlock()
	c.metrics.MessageSent()

	log.WithFields(logger.Fields{
		"at":             "(Client).SendMessage",
		"user_id":        c.cfg.UserID,
		"destination_id": destinationID,
		"circuit":        ids,
	}).Info("Message sent")
	return nil
}

func (c *Client) sendFailed(destinationID int, step string, err error) error {
	log.WithFields(logger.Fields{
		"at":             "(Client).SendMessage",
		"user_id":        c.cfg.UserID,
		"destination_id": destinationID,
		"step":           step,
		"reason":         err.Error(),
	}).Error("Send failed")
	return oops.Wrapf(err, "%s", step)
}

// ReceiveMessage stores plaintext delivered by an exit relay.
func (c *Client) ReceiveMessage(plaintext []byte) error {
	if len(plaintext) == 0 {
		return oops.Wrapf(protocol.ErrValidation, "received message is empty")
	}
	if !utf8.Valid(plaintext) {
		return oops.Wrapf(protocol.ErrValidation, "received message is not UTF-8")
	}

	msg := string(plaintext)
	c.mu.Lock()
	c.lastReceived = &msg
	c.mu.Unlock()
	c.metrics.MessageReceived()

	log.WithFields(logger.Fields{
		"at":      "(Client).ReceiveMessage",
		"user_id": c.cfg.UserID,
		"size":    len(plaintext),
	}).Info("Message received")
	return nil
}

func (c *Client) LastSentMessage() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastSent == nil {
		return "", false
	}
	return *c.lastSent, true
}

func (c *Client) LastReceivedMessage() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastReceived == nil {
		return "", false
	}
	return *c.lastReceived, true
}

// LastCircuit returns the node IDs of the last successful send, entry first.
func (c *Client) LastCircuit() ([]int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.lastCircuit), c.lastCircuit != nil
}

func (c *Client) UserID() int {
	return c.cfg.UserID
}

// Address returns the registered address; it is empty before Start.
func (c *Client) Address() address.Address {
	c.addrMu.RLock()
	defer c.addrMu.RUnlock()
	return c.addr
}

// Metrics returns the client's metrics, or nil when disabled.
func (c *Client) Metrics() *instrument.Metrics {
	return c.metrics
}

func (c *Client) Status() protocol.Status {
	state := "new"
	switch {
	case c.serving.Load():
		state = "serving"
	case c.Address() != "":
		state = "registered"
	}
	return protocol.Status{
		Role:    "client",
		ID:      c.cfg.UserID,
		Address: c.Address().String(),
		State:   state,
		Suite:   c.provider.Suite(),
		Methods: c.registry.ListMethods(),
	}
}
