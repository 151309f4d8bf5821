package network

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/go-i2p/go-onion/lib/address"
	"github.com/go-i2p/go-onion/lib/client"
	"github.com/go-i2p/go-onion/lib/directory"
	"github.com/go-i2p/go-onion/lib/protocol"
	"github.com/go-i2p/go-onion/lib/relay"
	"github.com/go-i2p/go-onion/lib/rpc"
)

var log = logger.GetGoI2PLogger()

// DefaultHost is the interface every node binds when Config.Host is empty.
const DefaultHost = "127.0.0.1"

// Config describes an in-process network. Relays get node IDs 1..Relays and
// clients get user IDs 1..Clients.
type Config struct {
	Relays  int
	Clients int
	Suite   string

	PathLength     int
	ForwardTimeout time.Duration

	RateLimit float64
	RateBurst int

	Server  rpc.ServerConfig
	Metrics bool

	// Host is the IPv4 address all nodes bind with ephemeral ports.
	Host string
}

// Network is a directory, its relays and its clients running in one process
// and talking to each other over loopback JSON-RPC.
type Network struct {
	directory *directory.Node
	relays    map[int]*relay.Relay
	clients   map[int]*client.Client
}

// Start brings up the directory, then all relays, then all clients. Relays
// and clients start concurrently within their group. If any node fails to
// start, every node already started is closed.
func Start(ctx context.Context, cfg Config) (*Network, error) {
	if cfg.Relays < 0 || cfg.Clients < 0 {
		return nil, oops.Wrapf(protocol.ErrValidation, "node counts must not be negative")
	}
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	listen := net.JoinHostPort(host, "0")

	dirNode, err := directory.NewNode(directory.Config{
		Listen:  listen,
		Suite:   cfg.Suite,
		Server:  cfg.Server,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	if err := dirNode.Start(ctx); err != nil {
		return nil, oops.Wrapf(err, "start directory")
	}

	n := &Network{
		directory: dirNode,
		relays:    make(map[int]*relay.Relay, cfg.Relays),
		clients:   make(map[int]*client.Client, cfg.Clients),
	}
	timeout := cfg.ForwardTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	registry := directory.NewRemote(dirNode.Endpoint(), timeout)

	for id := 1; id <= cfg.Relays; id++ {
		r, err := relay.New(relay.Config{
			NodeID:         id,
			Listen:         listen,
			Suite:          cfg.Suite,
			ForwardTimeout: timeout,
			RateLimit:      cfg.RateLimit,
			RateBurst:      cfg.RateBurst,
			Server:         cfg.Server,
			Metrics:        cfg.Metrics,
		}, registry)
		if err != nil {
			return nil, n.abort(err)
		}
		n.relays[id] = r
	}
	if err := startAll(ctx, n.relays); err != nil {
		return nil, n.abort(oops.Wrapf(err, "start relays"))
	}

	for id := 1; id <= cfg.Clients; id++ {
		c, err := client.New(client.Config{
			UserID:         id,
			Listen:         listen,
			Suite:          cfg.Suite,
			PathLength:     cfg.PathLength,
			ForwardTimeout: timeout,
			Server:         cfg.Server,
			Metrics:        cfg.Metrics,
		}, registry)
		if err != nil {
			return nil, n.abort(err)
		}
		n.clients[id] = c
	}
	if err := startAll(ctx, n.clients); err != nil {
		return nil, n.abort(oops.Wrapf(err, "start clients"))
	}

	log.WithFields(logger.Fields{
		"at":        "network.Start",
		"directory": dirNode.Endpoint(),
		"relays":    len(n.relays),
		"clients":   len(n.clients),
	}).Info("Network started")
	return n, nil
}

type starter interface {
	Start(ctx context.Context) error
}

func startAll[T starter](ctx context.Context, nodes map[int]T) error {
	g, gctx := errgroup.WithContext(ctx)
	for id, node := range nodes {
		g.Go(func() error {
			if err := node.Start(gctx); err != nil {
				return oops.Wrapf(err, "node %d", id)
			}
			return nil
		})
	}
	return g.Wait()
}

func (n *Network) abort(cause error) error {
	if err := n.Close(); err != nil {
		log.WithFields(logger.Fields{
			"at":     "(Network).abort",
			"reason": err.Error(),
		}).Warn("Errors while closing partially started network")
	}
	return cause
}

// Close stops every node, clients first and the directory last, and returns
// all shutdown errors combined.
func (n *Network) Close() error {
	var err error
	for _, id := range sortedIDs(n.clients) {
		err = multierr.Append(err, n.clients[id].Close())
	}
	for _, id := range sortedIDs(n.relays) {
		err = multierr.Append(err, n.relays[id].Close())
	}
	return multierr.Append(err, n.directory.Close())
}

// Directory returns the directory node.
func (n *Network) Directory() *directory.Node {
	return n.directory
}

// Relay returns the relay with node ID id, or nil.
func (n *Network) Relay(id int) *relay.Relay {
	return n.relays[id]
}

// Client returns the client with user ID id, or nil.
func (n *Network) Client(id int) *client.Client {
	return n.clients[id]
}

// Send sends message from one client to another through a fresh circuit.
func (n *Network) Send(ctx context.Context, from, to int, message string) error {
	c, ok := n.clients[from]
	if !ok {
		return oops.Wrapf(protocol.ErrValidation, "no client with user id %d", from)
	}
	return c.SendMessage(ctx, to, message)
}

// SetRateLimit replaces the delivery limiter of every relay.
func (n *Network) SetRateLimit(limit float64, burst int) {
	for _, r := range n.relays {
		r.SetRateLimit(limit, burst)
	}
}

// Snapshot is a point-in-time view of every node's diagnostics.
type Snapshot struct {
	Directory protocol.Status  `yaml:"directory"`
	Relays    []RelaySnapshot  `yaml:"relays"`
	Clients   []ClientSnapshot `yaml:"clients"`
}

type RelaySnapshot struct {
	Status             protocol.Status `yaml:"status"`
	LastEncryptedBytes int             `yaml:"last_encrypted_bytes"`
	LastDecrypted      string          `yaml:"last_decrypted,omitempty"`
	LastDestination    string          `yaml:"last_destination,omitempty"`
}

type ClientSnapshot struct {
	Status       protocol.Status `yaml:"status"`
	LastSent     string          `yaml:"last_sent,omitempty"`
	LastReceived string          `yaml:"last_received,omitempty"`
	LastCircuit  []int           `yaml:"last_circuit,omitempty"`
}

// Snapshot collects diagnostics ordered by node and user ID. Decrypted relay
// payloads are shown as UTF-8 only at the exit; inner layers are summarized
// by size.
func (n *Network) Snapshot() Snapshot {
	s := Snapshot{Directory: n.directory.Status()}

	for _, id := range sortedIDs(n.relays) {
		r := n.relays[id]
		rs := RelaySnapshot{Status: r.Status()}
		if enc, ok := r.LastReceivedEncrypted(); ok {
			rs.LastEncryptedBytes = len(enc)
		}
		dest, ok := r.LastMessageDestination()
		if ok {
			rs.LastDestination = dest.Endpoint()
		}
		if dec, ok := r.LastReceivedDecrypted(); ok {
			if n.isClientAddress(dest) {
				rs.LastDecrypted = string(dec)
			} else {
				rs.LastDecrypted = fmt.Sprintf("<%d bytes>", len(dec))
			}
		}
		s.Relays = append(s.Relays, rs)
	}

	for _, id := range sortedIDs(n.clients) {
		c := n.clients[id]
		cs := ClientSnapshot{Status: c.Status()}
		cs.LastSent, _ = c.LastSentMessage()
		cs.LastReceived, _ = c.LastReceivedMessage()
		cs.LastCircuit, _ = c.LastCircuit()
		s.Clients = append(s.Clients, cs)
	}
	return s
}

func (n *Network) isClientAddress(a address.Address) bool {
	for _, c := range n.clients {
		if c.Address() == a {
			return true
		}
	}
	return false
}

func sortedIDs[T any](m map[int]T) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
