package crypto

import (
	"crypto/cipher"
	"crypto/sha256"
	"io"

	"github.com/go-i2p/crypto/rand"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// Curve25519PublicKeySize is the size of an X25519 public or private key.
	Curve25519PublicKeySize = curve25519.PointSize

	// X25519EncryptedKeyLen is the sealed size of a layer key: the ephemeral
	// public key, the encrypted key and the Poly1305 tag.
	X25519EncryptedKeyLen = Curve25519PublicKeySize + SymmetricKeySize + chacha20poly1305.Overhead
)

var layerKeyInfo = []byte("go-onion layer key v1")

// X25519Provider seals layer keys to an X25519 public key with an ephemeral
// Diffie-Hellman exchange, HKDF-SHA256 and ChaCha20-Poly1305, and encrypts
// layer payloads with XChaCha20-Poly1305.
type X25519Provider struct{}

var _ Provider = X25519Provider{}

func (X25519Provider) Suite() string { return SuiteX25519 }

func (X25519Provider) EncryptedKeyLen() int { return X25519EncryptedKeyLen }

// GenerateKeyPair returns a clamped X25519 private key and its public key.
func (X25519Provider) GenerateKeyPair() (PublicKey, PrivateKey, error) {
	priv, pub, err := generateEphemeralKey()
	if err != nil {
		return nil, nil, err
	}
	return PublicKey(pub), PrivateKey(priv), nil
}

func (X25519Provider) ValidatePublicKey(pub PublicKey) error {
	if len(pub) != Curve25519PublicKeySize {
		return oops.Wrapf(ErrInvalidKey, "X25519 public key must be %d bytes, got %d", Curve25519PublicKeySize, len(pub))
	}
	return nil
}

// Encrypt seals plaintext to pub. The output is the ephemeral public key
// followed by the AEAD ciphertext.
func (p X25519Provider) Encrypt(plaintext []byte, pub PublicKey) ([]byte, error) {
	if err := p.ValidatePublicKey(pub); err != nil {
		return nil, err
	}

	ephemeralPriv, ephemeralPub, err := generateEphemeralKey()
	if err != nil {
		return nil, err
	}

	shared, err := curve25519.X25519(ephemeralPriv, pub)
	if err != nil {
		return nil, oops.Wrapf(ErrInvalidKey, "X25519 exchange failed: %v", err)
	}

	aead, err := sealingAEAD(shared, ephemeralPub, pub)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	out := make([]byte, 0, len(ephemeralPub)+len(plaintext)+aead.Overhead())
	out = append(out, ephemeralPub...)
	out = aead.Seal(out, nonce, plaintext, ephemeralPub)
	return out, nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (X25519Provider) Decrypt(ciphertext []byte, priv PrivateKey) ([]byte, error) {
	if len(priv) != Curve25519PublicKeySize {
		return nil, oops.Wrapf(ErrInvalidKey, "X25519 private key must be %d bytes", Curve25519PublicKeySize)
	}
	if len(ciphertext) < Curve25519PublicKeySize+chacha20poly1305.Overhead {
		return nil, oops.Wrapf(ErrDecrypt, "sealed key too short: %d bytes", len(ciphertext))
	}

	ephemeralPub := ciphertext[:Curve25519PublicKeySize]
	shared, err := curve25519.X25519(priv, ephemeralPub)
	if err != nil {
		return nil, oops.Wrapf(ErrDecrypt, "X25519 exchange failed: %v", err)
	}

	ownPub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, oops.Wrapf(ErrInvalidKey, "derive public key: %v", err)
	}

	aead, err := sealingAEAD(shared, ephemeralPub, ownPub)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	plaintext, err := aead.Open(nil, nonce, ciphertext[Curve25519PublicKeySize:], ephemeralPub)
	if err != nil {
		log.WithField("ciphertext_length", len(ciphertext)).Debug("Sealed key failed authentication")
		return nil, oops.Wrapf(ErrDecrypt, "open sealed key: %v", err)
	}
	return plaintext, nil
}

func (X25519Provider) GenerateSymmetricKey() (SymmetricKey, error) {
	return randomSymmetricKey()
}

// SymmetricEncrypt encrypts with XChaCha20-Poly1305 and prepends the random
// 24-byte nonce.
func (X25519Provider) SymmetricEncrypt(key SymmetricKey, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, oops.Wrapf(ErrInvalidKey, "XChaCha20-Poly1305 key: %v", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, oops.Wrapf(err, "failed to generate nonce")
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// SymmetricDecrypt strips the nonce prefix and opens the ciphertext.
func (X25519Provider) SymmetricDecrypt(key SymmetricKey, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, oops.Wrapf(ErrInvalidKey, "XChaCha20-Poly1305 key: %v", err)
	}
	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, oops.Wrapf(ErrDecrypt, "ciphertext too short: %d bytes", len(ciphertext))
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, oops.Wrapf(ErrDecrypt, "open payload: %v", err)
	}
	return plaintext, nil
}

// generateEphemeralKey generates a new private/public key pair for X25519.
func generateEphemeralKey() (priv, pub []byte, err error) {
	priv = make([]byte, Curve25519PublicKeySize)
	if _, err = rand.Read(priv); err != nil {
		return nil, nil, oops.Wrapf(err, "failed to generate X25519 key")
	}

	// Clamp the private key per RFC 7748
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, oops.Wrapf(err, "failed to derive X25519 public key")
	}
	return priv, pub, nil
}

// sealingAEAD derives the one-time ChaCha20-Poly1305 key for a sealed layer
// key. The key is bound to both public keys, so the all-zero nonce is never
// reused under the same key.
func sealingAEAD(shared, ephemeralPub, recipientPub []byte) (cipher.AEAD, error) {
	salt := make([]byte, 0, len(ephemeralPub)+len(recipientPub))
	salt = append(salt, ephemeralPub...)
	salt = append(salt, recipientPub...)

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, layerKeyInfo), key); err != nil {
		return nil, oops.Wrapf(err, "HKDF failed")
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":     "sealingAEAD",
			"reason": err.Error(),
		}).Error("Failed to create ChaCha20-Poly1305")
		return nil, oops.Wrapf(err, "ChaCha20-Poly1305 key")
	}
	return aead, nil
}

func randomSymmetricKey() (SymmetricKey, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, oops.Wrapf(err, "failed to generate symmetric key")
	}
	return SymmetricKey(key), nil
}
