package directory

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onion/lib/address"
	"github.com/go-i2p/go-onion/lib/crypto"
	"github.com/go-i2p/go-onion/lib/instrument"
	"github.com/go-i2p/go-onion/lib/protocol"
)

var log = logger.GetGoI2PLogger()

// Directory is the registry of relays and users.
//
// Writers are serialized by mu and publish a fresh copy of the node slice;
// readers load the current slice without locking, so List never observes a
// partially applied registration and never waits for one.
type Directory struct {
	provider crypto.Provider
	metrics  *instrument.Metrics

	mu      sync.Mutex
	nodeIDs map[int]struct{}
	nodes   atomic.Pointer[[]protocol.NodeRecord]

	usersMu sync.RWMutex
	users   map[int]protocol.UserRecord
}

// New returns an empty Directory that validates public keys against
// provider's suite. metrics may be nil.
func New(provider crypto.Provider, metrics *instrument.Metrics) *Directory {
	d := &Directory{
		provider: provider,
		metrics:  metrics,
		nodeIDs:  make(map[int]struct{}),
		users:    make(map[int]protocol.UserRecord),
	}
	empty := []protocol.NodeRecord{}
	d.nodes.Store(&empty)
	return d
}

// Suite returns the crypto suite public keys are validated against.
func (d *Directory) Suite() string {
	return d.provider.Suite()
}

// Register adds a relay. It fails with protocol.ErrDuplicateNode if nodeID is
// already registered and with protocol.ErrValidation if nodeID is not
// positive, publicKey does not import under the directory's suite, or addr is
// not a valid address.
func (d *Directory) Register(nodeID int, publicKey, addr string) error {
	err := d.register(nodeID, publicKey, addr)
	d.metrics.Registration("node", err)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":      "(Directory).Register",
			"node_id": nodeID,
			"reason":  err.Error(),
		}).Warn("Rejected node registration")
		return err
	}

	log.WithFields(logger.Fields{
		"at":      "(Directory).Register",
		"node_id": nodeID,
		"address": addr,
	}).Info("Registered node")
	return nil
}

func (d *Directory) register(nodeID int, publicKey, addr string) error {
	if nodeID <= 0 {
		return oops.Wrapf(protocol.ErrValidation, "node id must be positive, got %d", nodeID)
	}
	if publicKey == "" {
		return oops.Wrapf(protocol.ErrValidation, "node %d: public key is empty", nodeID)
	}
	if _, err := crypto.ImportPublicKey(d.provider, publicKey); err != nil {
		return oops.Wrapf(protocol.ErrValidation, "node %d: public key rejected by suite %s: %v", nodeID, d.provider.Suite(), err)
	}
	parsed, err := address.Parse(addr)
	if err != nil {
		return oops.Wrapf(err, "node %d", nodeID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.nodeIDs[nodeID]; exists {
		return oops.Wrapf(protocol.ErrDuplicateNode, "node %d already registered", nodeID)
	}

	current := *d.nodes.Load()
	next := make([]protocol.NodeRecord, len(current), len(current)+1)
	copy(next, current)
	next = append(next, protocol.NodeRecord{
		NodeID:    nodeID,
		PublicKey: publicKey,
		Address:   parsed.String(),
	})

	d.nodeIDs[nodeID] = struct{}{}
	d.nodes.Store(&next)
	d.metrics.SetRegistered("node", len(next))
	return nil
}

// List returns every registered relay in registration order. The returned
// slice is the caller's to modify.
func (d *Directory) List() []protocol.NodeRecord {
	return slices.Clone(*d.nodes.Load())
}

// Len returns the number of registered relays.
func (d *Directory) Len() int {
	return len(*d.nodes.Load())
}

// RegisterUser records the inbound address of a client. It fails with
// protocol.ErrDuplicateUser if userID is taken and with
// protocol.ErrValidation for a non-positive id or invalid address.
func (d *Directory) RegisterUser(userID int, addr string) error {
	err := d.registerUser(userID, addr)
	d.metrics.Registration("user", err)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":      "(Directory).RegisterUser",
			"user_id": userID,
			"reason":  err.Error(),
		}).Warn("Rejected user registration")
		return err
	}

	log.WithFields(logger.Fields{
		"at":      "(Directory).RegisterUser",
		"user_id": userID,
		"address": addr,
	}).Info("Registered user")
	return nil
}

func (d *Directory) registerUser(userID int, addr string) error {
	if userID <= 0 {
		return oops.Wrapf(protocol.ErrValidation, "user id must be positive, got %d", userID)
	}
	parsed, err := address.Parse(addr)
	if err != nil {
		return oops.Wrapf(err, "user %d", userID)
	}

	d.usersMu.Lock()
	defer d.usersMu.Unlock()

	if _, exists := d.users[userID]; exists {
		return oops.Wrapf(protocol.ErrDuplicateUser, "user %d already registered", userID)
	}
	d.users[userID] = protocol.UserRecord{UserID: userID, Address: parsed.String()}
	d.metrics.SetRegistered("user", len(d.users))
	return nil
}

// LookupUser returns the record of userID, or protocol.ErrUnknownDestination.
func (d *Directory) LookupUser(userID int) (protocol.UserRecord, error) {
	d.usersMu.RLock()
	defer d.usersMu.RUnlock()

	rec, ok := d.users[userID]
	if !ok {
		return protocol.UserRecord{}, oops.Wrapf(protocol.ErrUnknownDestination, "user %d is not registered", userID)
	}
	return rec, nil
}
