package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"golang.org/x/time/rate"

	"github.com/go-i2p/go-onion/lib/address"
	"github.com/go-i2p/go-onion/lib/crypto"
	"github.com/go-i2p/go-onion/lib/directory"
	"github.com/go-i2p/go-onion/lib/instrument"
	"github.com/go-i2p/go-onion/lib/onion"
	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/rpc"
)

var log = logger.GetGoI2PLogger()

// State is the lifecycle state of a relay.
type State int32

const (
	StateNew State = iota
	StateRegistered
	StateServing
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRegistered:
		return "registered"
	case StateServing:
		return "serving"
	default:
		return "unknown"
	}
}

// Config configures a relay.
type Config struct {
	NodeID int
	// Listen is the "host:port" endpoint to bind and publish. Port 0 picks a
	// free port.
	Listen string
	Suite  string

	// ForwardTimeout bounds every forward to the next hop. The RPC Deliver
	// handler answers its caller after at most half of it; a forward still
	// running then completes in the background.
	ForwardTimeout time.Duration

	// RateLimit is the sustained number of deliveries accepted per second;
	// zero or less disables limiting.
	RateLimit float64
	RateBurst int

	Server  rpc.ServerConfig
	Metrics bool
}

// Option customizes a Relay.
type Option func(*Relay)

// WithForwarder replaces the JSON-RPC forwarder.
func WithForwarder(f rpc.Forwarder) Option {
	return func(r *Relay) {
		r.forwarder = f
	}
}

// Relay removes one onion layer from every delivery and forwards the
// remainder to the address found inside.
type Relay struct {
	cfg       Config
	provider  crypto.Provider
	directory directory.Registry
	forwarder rpc.Forwarder
	limiter   atomic.Pointer[rate.Limiter]
	metrics   *instrument.Metrics
	registry  *rpc.MethodRegistry
	server    *rpc.Server

	state    atomic.Int32
	inflight sync.WaitGroup

	mu   sync.RWMutex
	pub  crypto.PublicKey
	priv crypto.PrivateKey
	addr address.Address

	diag diagnostics
}

// New creates a relay that registers with dir. It holds no keys and does not
// listen until Start.
func New(cfg Config, dir directory.Registry, opts ...Option) (*Relay, error) {
	if cfg.NodeID <= 0 {
		return nil, oops.Wrapf(protocol.ErrValidation, "node id must be positive, got %d", cfg.NodeID)
	}
	provider, err := crypto.NewProvider(cfg.Suite)
	if err != nil {
		return nil, err
	}

	r := &Relay{
		cfg:       cfg,
		provider:  provider,
		directory: dir,
		forwarder: rpc.DeliverForwarder{Timeout: cfg.ForwardTimeout},
		registry:  rpc.NewMethodRegistry(),
	}
	r.SetRateLimit(cfg.RateLimit, cfg.RateBurst)
	if cfg.Metrics {
		r.metrics = instrument.New("relay", cfg.NodeID)
	}
	for _, opt := range opts {
		opt(r)
	}

	r.registerMethods()
	serverCfg := cfg.Server
	serverCfg.Metrics = r.metrics.Handler()
	r.server = rpc.NewServer(serverCfg, r.registry)
	return r, nil
}

// Start generates the relay's key pair, binds its listener, registers with
// the directory and begins serving. The relay is Registered once the
// directory has accepted it and Serving once requests are answered.
func (r *Relay) Start(ctx context.Context) error {
	if State(r.state.Load()) != StateNew {
		return oops.Errorf("relay %d already started", r.cfg.NodeID)
	}

	pub, priv, err := r.provider.GenerateKeyPair()
	if err != nil {
		return oops.Wrapf(err, "relay %d key pair", r.cfg.NodeID)
	}

	l, err := rpc.Listen(r.cfg.Listen)
	if err != nil {
		return err
	}
	addr, err := address.FromEndpoint(l.Addr().String())
	if err != nil {
		l.Close()
		return oops.Wrapf(err, "relay %d listener", r.cfg.NodeID)
	}

	r.mu.Lock()
	r.pub, r.priv, r.addr = pub, priv, addr
	r.mu.Unlock()

	if err := r.directory.RegisterNode(ctx, r.cfg.NodeID, crypto.ExportKey(pub), addr); err != nil {
		l.Close()
		log.WithFields(logger.Fields{
			"at":      "(Relay).Start",
			"node_id": r.cfg.NodeID,
			"reason":  err.Error(),
		}).Error("Directory rejected registration")
		return err
	}
	r.state.Store(int32(StateRegistered))

	if err := r.server.Serve(l); err != nil {
		l.Close()
		log.WithFields(logger.Fields{
			"at":       "(Relay).Start",
			"node_id":  r.cfg.NodeID,
			"endpoint": addr.Endpoint(),
			"reason":   err.Error(),
		}).Error("Relay registered but not serving; directory entry is stranded")
		return err
	}
	r.state.Store(int32(StateServing))

	log.WithFields(logger.Fields{
		"at":       "(Relay).Start",
		"node_id":  r.cfg.NodeID,
		"endpoint": addr.Endpoint(),
		"suite":    r.provider.Suite(),
	}).Info("Relay serving")
	return nil
}

// Close stops serving and waits for background forwards to finish. The relay
// stays registered.
func (r *Relay) Close() error {
	err := r.server.Stop()
	r.inflight.Wait()
	return err
}

// SetRateLimit replaces the delivery limiter. A limit of zero or less
// disables limiting.
func (r *Relay) SetRateLimit(limit float64, burst int) {
	if limit <= 0 {
		r.limiter.Store(nil)
		return
	}
	if burst < 1 {
		burst = 1
	}
	r.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
}

// Deliver peels one layer off onionBytes and forwards the remainder, blocking
// until the next hop answers or the forward times out. It records the raw
// input before peeling; the decrypted remainder and its destination are
// recorded only when the peel succeeds.
//
// Any forward failure, including an error reported by the next hop, is
// returned as protocol.ErrNextHopUnreachable.
func (r *Relay) Deliver(ctx context.Context, onionBytes []byte) error {
	next, remainder, err := r.accept(onionBytes)
	if err != nil {
		return err
	}
	return r.forward(ctx, next, remainder)
}

// accept rate limits, records and peels one delivery.
func (r *Relay) accept(onionBytes []byte) (address.Address, []byte, error) {
	r.metrics.DeliveryReceived()

	if limiter := r.limiter.Load(); limiter != nil && !limiter.Allow() {
		r.metrics.DeliveryDropped(instrument.DropRateLimited)
		log.WithFields(logger.Fields{
			"at":      "(Relay).Deliver",
			"node_id": r.cfg.NodeID,
			"reason":  "rate limited",
		}).Warn("Dropping delivery")
		return "", nil, oops.Wrapf(protocol.ErrRateLimited, "relay %d", r.cfg.NodeID)
	}
	if len(onionBytes) == 0 {
		r.metrics.DeliveryDropped(instrument.DropInvalid)
		return "", nil, oops.Wrapf(protocol.ErrValidation, "relay %d: empty onion", r.cfg.NodeID)
	}

	r.diag.recordEncrypted(onionBytes)

	r.mu.RLock()
	priv := r.priv
	r.mu.RUnlock()

	next, remainder, err := onion.Peel(r.provider, priv, onionBytes)
	if err != nil {
		r.metrics.DeliveryDropped(instrument.DropCrypto)
		log.WithFields(logger.Fields{
			"at":      "(Relay).Deliver",
			"node_id": r.cfg.NodeID,
			"size":    len(onionBytes),
			"reason":  err.Error(),
		}).Warn("Failed to peel layer, dropping")
		return "", nil, err
	}
	r.metrics.LayerPeeled()
	r.diag.recordDecrypted(remainder, next)
	return next, remainder, nil
}

// forward hands remainder to next. Cancelling ctx does not abort an issued
// forward; only the forwarder's timeout bounds it.
func (r *Relay) forward(ctx context.Context, next address.Address, remainder []byte) error {
	if err := r.forwarder.Forward(context.WithoutCancel(ctx), next, remainder); err != nil {
		r.metrics.DeliveryDropped(instrument.DropForward)
		log.WithFields(logger.Fields{
			"at":      "(Relay).Deliver",
			"node_id": r.cfg.NodeID,
			"next":    next.Endpoint(),
			"reason":  err.Error(),
		}).Warn("Forward failed, dropping")
		if errors.Is(err, protocol.ErrNextHopUnreachable) {
			return err
		}
		return oops.Wrapf(protocol.ErrNextHopUnreachable, "next hop %s rejected payload: %v", next.Endpoint(), err)
	}
	r.metrics.Forwarded()

	log.WithFields(logger.Fields{
		"at":      "(Relay).Deliver",
		"node_id": r.cfg.NodeID,
		"next":    next.Endpoint(),
		"size":    len(remainder),
	}).Debug("Forwarded payload")
	return nil
}

// NodeID returns the relay's directory identity.
func (r *Relay) NodeID() int {
	return r.cfg.NodeID
}

// Address returns the published address; it is empty before Start.
func (r *Relay) Address() address.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.addr
}

// PublicKey returns the relay's public key; it is nil before Start.
func (r *Relay) PublicKey() crypto.PublicKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pub
}

func (r *Relay) State() State {
	return State(r.state.Load())
}

// Metrics returns the relay's metrics, or nil when disabled.
func (r *Relay) Metrics() *instrument.Metrics {
	return r.metrics
}

// LastReceivedEncrypted returns the last onion handed to Deliver.
func (r *Relay) LastReceivedEncrypted() ([]byte, bool) {
	return r.diag.encrypted()
}

// LastReceivedDecrypted returns the remainder produced by the last
// successful peel.
func (r *Relay) LastReceivedDecrypted() ([]byte, bool) {
	return r.diag.decrypted()
}

// LastMessageDestination returns the next-hop address of the last
// successful peel.
func (r *Relay) LastMessageDestination() (address.Address, bool) {
	return r.diag.destination()
}

func (r *Relay) Status() protocol.Status {
	return protocol.Status{
		Role:    "relay",
		ID:      r.cfg.NodeID,
		Address: r.Address().String(),
		State:   r.State().String(),
		Suite:   r.provider.Suite(),
		Methods: r.registry.ListMethods(),
	}
}
