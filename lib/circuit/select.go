// Package circuit selects the relays a message travels through.
package circuit

import (
	"github.com/go-i2p/crypto/rand"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onion/lib/protocol"
)

var log = logger.GetGoI2PLogger()

// Select returns pathLength distinct relays drawn uniformly at random without
// replacement from nodes. The result is in traversal order: entry first, exit
// last. nodes is not modified.
//
// Records sharing a NodeID count once. Select fails with
// protocol.ErrInsufficientNodes when fewer than pathLength distinct relays are
// available, and with protocol.ErrValidation when pathLength is below 1.
func Select(nodes []protocol.NodeRecord, pathLength int) ([]protocol.NodeRecord, error) {
	if pathLength < 1 {
		log.WithFields(logger.Fields{
			"at":          "circuit.Select",
			"path_length": pathLength,
			"reason":      "path length must be positive",
		}).Error("Invalid path length")
		return nil, oops.Wrapf(protocol.ErrValidation, "path length must be at least 1, got %d", pathLength)
	}

	pool := distinct(nodes)
	if len(pool) < pathLength {
		log.WithFields(logger.Fields{
			"at":          "circuit.Select",
			"available":   len(pool),
			"path_length": pathLength,
			"reason":      "insufficient nodes",
		}).Warn("Cannot build circuit")
		return nil, oops.Wrapf(protocol.ErrInsufficientNodes, "need %d relays, %d registered", pathLength, len(pool))
	}

	// Partial Fisher-Yates: after step i, pool[:i+1] is a uniform sample.
	for i := 0; i < pathLength; i++ {
		j := i + rand.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	selected := pool[:pathLength:pathLength]
	log.WithFields(logger.Fields{
		"at":          "circuit.Select",
		"path_length": pathLength,
		"entry":       selected[0].NodeID,
		"exit":        selected[pathLength-1].NodeID,
	}).Debug("Selected circuit")
	return selected, nil
}

// distinct returns a copy of nodes keeping the first record of each NodeID.
func distinct(nodes []protocol.NodeRecord) []protocol.NodeRecord {
	seen := make(map[int]struct{}, len(nodes))
	out := make([]protocol.NodeRecord, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := seen[n.NodeID]; dup {
			continue
		}
		seen[n.NodeID] = struct{}{}
		out = append(out, n)
	}
	return out
}

// IDs returns the node IDs of a circuit in traversal order.
func IDs(c []protocol.NodeRecord) []int {
	ids := make([]int, len(c))
	for i, n := range c {
		ids[i] = n.NodeID
	}
	return ids
}
