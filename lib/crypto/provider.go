package crypto

import (
	"errors"

	"github.com/go-i2p/common/base64"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Suite names accepted by NewProvider.
const (
	SuiteX25519 = "x25519-chacha20poly1305"
	SuiteRSA    = "rsa-oaep-aes-cbc"

	DefaultSuite = SuiteX25519
)

// SymmetricKeySize is the length of every layer key, for both suites.
const SymmetricKeySize = 32

var (
	// ErrDecrypt is returned when a ciphertext cannot be opened with the given key.
	ErrDecrypt = errors.New("decryption failed")

	// ErrInvalidKey is returned when key material has the wrong size or encoding.
	ErrInvalidKey = errors.New("invalid key material")

	// ErrUnknownSuite is returned by NewProvider for unsupported suite names.
	ErrUnknownSuite = errors.New("unknown crypto suite")
)

type (
	// PublicKey is suite-specific public key material in its raw encoding.
	PublicKey []byte

	// PrivateKey is suite-specific private key material in its raw encoding.
	// It never leaves the node that generated it.
	PrivateKey []byte

	// SymmetricKey is a SymmetricKeySize-byte layer key.
	SymmetricKey []byte
)

// Provider is the crypto contract consumed by onion construction and peeling.
//
// Encrypt must produce exactly EncryptedKeyLen bytes for a SymmetricKeySize
// plaintext so layers can be split at a fixed offset. SymmetricEncrypt
// prepends a random IV or nonce of fixed length which SymmetricDecrypt strips.
type Provider interface {
	Suite() string
	EncryptedKeyLen() int

	GenerateKeyPair() (PublicKey, PrivateKey, error)
	ValidatePublicKey(pub PublicKey) error
	Encrypt(plaintext []byte, pub PublicKey) ([]byte, error)
	Decrypt(ciphertext []byte, priv PrivateKey) ([]byte, error)

	GenerateSymmetricKey() (SymmetricKey, error)
	SymmetricEncrypt(key SymmetricKey, plaintext []byte) ([]byte, error)
	SymmetricDecrypt(key SymmetricKey, ciphertext []byte) ([]byte, error)
}

// NewProvider returns the Provider for a suite name. An empty name selects
// DefaultSuite.
func NewProvider(suite string) (Provider, error) {
	switch suite {
	case "", SuiteX25519:
		return X25519Provider{}, nil
	case SuiteRSA:
		return RSAProvider{}, nil
	default:
		log.WithField("suite", suite).Error("Unsupported crypto suite")
		return nil, oops.Wrapf(ErrUnknownSuite, "suite %q", suite)
	}
}

// ExportKey encodes key material as an I2P base64 string.
func ExportKey(key []byte) string {
	return base64.EncodeToString(key)
}

// ImportPublicKey decodes an exported public key and checks it against the
// provider's suite.
func ImportPublicKey(p Provider, s string) (PublicKey, error) {
	raw, err := base64.DecodeString(s)
	if err != nil {
		return nil, oops.Wrapf(ErrInvalidKey, "public key is not base64: %v", err)
	}
	pub := PublicKey(raw)
	if err := p.ValidatePublicKey(pub); err != nil {
		return nil, err
	}
	return pub, nil
}

// ImportSymmetricKey checks raw bytes recovered from a layer and returns them
// as a SymmetricKey.
func ImportSymmetricKey(raw []byte) (SymmetricKey, error) {
	if len(raw) != SymmetricKeySize {
		return nil, oops.Wrapf(ErrInvalidKey, "symmetric key must be %d bytes, got %d", SymmetricKeySize, len(raw))
	}
	return SymmetricKey(raw), nil
}
