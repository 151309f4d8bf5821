package onion

import (
	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onion/lib/address"
	"github.com/go-i2p/go-onion/lib/crypto"
	"github.com/go-i2p/go-onion/lib/protocol"
)

var log = logger.GetGoI2PLogger()

// Build wraps message for destination in one layer per relay of circuit.
//
// Layers are built from the exit inwards. The exit layer carries the
// destination address and the message; every other layer carries the address
// of the next relay and the layer built before it. The returned onion is sent
// to circuit[0].
func Build(p crypto.Provider, message []byte, destination address.Address, circuit []protocol.NodeRecord) ([]byte, error) {
	if err := validate(destination, circuit); err != nil {
		log.WithFields(logger.Fields{
			"at":     "onion.Build",
			"hops":   len(circuit),
			"reason": err.Error(),
		}).Error("Refusing to build onion")
		return nil, err
	}

	nextHop := destination
	payload := message
	for i := len(circuit) - 1; i >= 0; i-- {
		layer, err := wrap(p, circuit[i], nextHop, payload)
		if err != nil {
			log.WithFields(logger.Fields{
				"at":      "onion.Build",
				"node_id": circuit[i].NodeID,
				"hop":     i,
				"reason":  err.Error(),
			}).Error("Failed to build layer")
			return nil, err
		}
		payload = layer
		nextHop = address.Address(circuit[i].Address)
	}

	log.WithFields(logger.Fields{
		"at":    "onion.Build",
		"hops":  len(circuit),
		"size":  len(payload),
		"entry": circuit[0].NodeID,
	}).Debug("Built onion")
	return payload, nil
}

// wrap produces encryptedKey ‖ SymmetricEncrypt(key, nextHop ‖ inner) for node.
func wrap(p crypto.Provider, node protocol.NodeRecord, nextHop address.Address, inner []byte) ([]byte, error) {
	pub, err := crypto.ImportPublicKey(p, node.PublicKey)
	if err != nil {
		return nil, oops.Wrapf(protocol.ErrCrypto, "node %d public key: %v", node.NodeID, err)
	}

	key, err := p.GenerateSymmetricKey()
	if err != nil {
		return nil, oops.Wrapf(protocol.ErrCrypto, "generate layer key: %v", err)
	}

	plaintext := make([]byte, 0, address.Width+len(inner))
	plaintext = append(plaintext, nextHop.String()...)
	plaintext = append(plaintext, inner...)

	encryptedPayload, err := p.SymmetricEncrypt(key, plaintext)
	if err != nil {
		return nil, oops.Wrapf(protocol.ErrCrypto, "encrypt layer for node %d: %v", node.NodeID, err)
	}

	encryptedKey, err := p.Encrypt(key, pub)
	if err != nil {
		return nil, oops.Wrapf(protocol.ErrCrypto, "seal layer key for node %d: %v", node.NodeID, err)
	}
	if len(encryptedKey) != p.EncryptedKeyLen() {
		return nil, oops.Wrapf(protocol.ErrCrypto, "sealed key is %d bytes, suite %s requires %d",
			len(encryptedKey), p.Suite(), p.EncryptedKeyLen())
	}

	layer := make([]byte, 0, len(encryptedKey)+len(encryptedPayload))
	layer = append(layer, encryptedKey...)
	layer = append(layer, encryptedPayload...)
	return layer, nil
}

func validate(destination address.Address, circuit []protocol.NodeRecord) error {
	if len(circuit) == 0 {
		return oops.Wrapf(protocol.ErrValidation, "circuit is empty")
	}
	if _, err := address.Parse(destination.String()); err != nil {
		return oops.Wrapf(err, "destination")
	}

	seen := make(map[int]struct{}, len(circuit))
	for i, node := range circuit {
		if _, dup := seen[node.NodeID]; dup {
			return oops.Wrapf(protocol.ErrValidation, "node %d appears twice in circuit", node.NodeID)
		}
		seen[node.NodeID] = struct{}{}
		if _, err := address.Parse(node.Address); err != nil {
			return oops.Wrapf(err, "hop %d (node %d)", i, node.NodeID)
		}
	}
	return nil
}

// Peel removes the outermost layer of onion with priv and returns the next
// hop's address and the remainder to forward to it. Every failure, including
// an onion too short to split, wraps protocol.ErrCrypto.
func Peel(p crypto.Provider, priv crypto.PrivateKey, onion []byte) (address.Address, []byte, error) {
	keyLen := p.EncryptedKeyLen()
	if len(onion) < keyLen {
		return "", nil, oops.Wrapf(protocol.ErrCrypto, "onion is %d bytes, shorter than a %d-byte sealed key", len(onion), keyLen)
	}

	encryptedKey, encryptedPayload := onion[:keyLen], onion[keyLen:]

	rawKey, err := p.Decrypt(encryptedKey, priv)
	if err != nil {
		return "", nil, oops.Wrapf(protocol.ErrCrypto, "open layer key: %v", err)
	}
	key, err := crypto.ImportSymmetricKey(rawKey)
	if err != nil {
		return "", nil, oops.Wrapf(protocol.ErrCrypto, "layer key: %v", err)
	}

	plaintext, err := p.SymmetricDecrypt(key, encryptedPayload)
	if err != nil {
		return "", nil, oops.Wrapf(protocol.ErrCrypto, "decrypt layer: %v", err)
	}
	if len(plaintext) < address.Width {
		return "", nil, oops.Wrapf(protocol.ErrCrypto, "layer plaintext is %d bytes, shorter than an address", len(plaintext))
	}

	next, err := address.Parse(string(plaintext[:address.Width]))
	if err != nil {
		return "", nil, oops.Wrapf(protocol.ErrCrypto, "layer address: %v", err)
	}
	return next, plaintext[address.Width:], nil
}
