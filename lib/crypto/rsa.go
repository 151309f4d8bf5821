package crypto

import (
	crand "crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"

	"github.com/samber/oops"
)

const (
	// RSAKeyBits is the modulus size of relay keys in the RSA suite.
	RSAKeyBits = 2048

	// RSAEncryptedKeyLen is the OAEP ciphertext size for RSAKeyBits.
	RSAEncryptedKeyLen = RSAKeyBits / 8
)

// RSAProvider seals layer keys with RSA-OAEP/SHA-256 and encrypts layer
// payloads with AES-256-CBC. Public keys are PKIX (SPKI) DER, private keys
// PKCS#8 DER.
type RSAProvider struct{}

var _ Provider = RSAProvider{}

func (RSAProvider) Suite() string { return SuiteRSA }

func (RSAProvider) EncryptedKeyLen() int { return RSAEncryptedKeyLen }

func (RSAProvider) GenerateKeyPair() (PublicKey, PrivateKey, error) {
	log.WithField("bits", RSAKeyBits).Debug("Generating RSA key pair")
	key, err := rsa.GenerateKey(crand.Reader, RSAKeyBits)
	if err != nil {
		return nil, nil, oops.Wrapf(err, "failed to generate RSA key")
	}

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, oops.Wrapf(err, "failed to marshal RSA public key")
	}
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, oops.Wrapf(err, "failed to marshal RSA private key")
	}
	return PublicKey(pub), PrivateKey(priv), nil
}

func (RSAProvider) ValidatePublicKey(pub PublicKey) error {
	_, err := parseRSAPublicKey(pub)
	return err
}

func (RSAProvider) Encrypt(plaintext []byte, pub PublicKey) ([]byte, error) {
	key, err := parseRSAPublicKey(pub)
	if err != nil {
		return nil, err
	}
	out, err := rsa.EncryptOAEP(sha256.New(), crand.Reader, key, plaintext, nil)
	if err != nil {
		return nil, oops.Wrapf(err, "RSA-OAEP encrypt")
	}
	return out, nil
}

func (RSAProvider) Decrypt(ciphertext []byte, priv PrivateKey) ([]byte, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(priv)
	if err != nil {
		return nil, oops.Wrapf(ErrInvalidKey, "parse RSA private key: %v", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, oops.Wrapf(ErrInvalidKey, "private key is %T, not RSA", parsed)
	}

	out, err := rsa.DecryptOAEP(sha256.New(), nil, key, ciphertext, nil)
	if err != nil {
		return nil, oops.Wrapf(ErrDecrypt, "RSA-OAEP decrypt: %v", err)
	}
	return out, nil
}

func (RSAProvider) GenerateSymmetricKey() (SymmetricKey, error) {
	return randomSymmetricKey()
}

func (RSAProvider) SymmetricEncrypt(key SymmetricKey, plaintext []byte) ([]byte, error) {
	return aesCBCEncrypt(key, plaintext)
}

func (RSAProvider) SymmetricDecrypt(key SymmetricKey, ciphertext []byte) ([]byte, error) {
	return aesCBCDecrypt(key, ciphertext)
}

func parseRSAPublicKey(pub PublicKey) (*rsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(pub)
	if err != nil {
		return nil, oops.Wrapf(ErrInvalidKey, "parse RSA public key: %v", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, oops.Wrapf(ErrInvalidKey, "public key is %T, not RSA", parsed)
	}
	if key.Size() != RSAEncryptedKeyLen {
		return nil, oops.Wrapf(ErrInvalidKey, "RSA key is %d bits, want %d", key.N.BitLen(), RSAKeyBits)
	}
	return key, nil
}
