package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allProviders(t *testing.T) []Provider {
	t.Helper()
	var out []Provider
	for _, suite := range []string{SuiteX25519, SuiteRSA} {
		p, err := NewProvider(suite)
		require.NoError(t, err)
		require.Equal(t, suite, p.Suite())
		out = append(out, p)
	}
	return out
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSuite, p.Suite())

	_, err = NewProvider("rot13")
	assert.ErrorIs(t, err, ErrUnknownSuite)
}

func TestProviderKeyRoundTrip(t *testing.T) {
	for _, p := range allProviders(t) {
		t.Run(p.Suite(), func(t *testing.T) {
			pub, priv, err := p.GenerateKeyPair()
			require.NoError(t, err)
			require.NoError(t, p.ValidatePublicKey(pub))

			key, err := p.GenerateSymmetricKey()
			require.NoError(t, err)
			assert.Len(t, key, SymmetricKeySize)

			sealed, err := p.Encrypt(key, pub)
			require.NoError(t, err)
			assert.Len(t, sealed, p.EncryptedKeyLen())

			opened, err := p.Decrypt(sealed, priv)
			require.NoError(t, err)
			assert.Equal(t, []byte(key), opened)
		})
	}
}

func TestProviderEncryptedKeyLenIsFixed(t *testing.T) {
	for _, p := range allProviders(t) {
		t.Run(p.Suite(), func(t *testing.T) {
			pub, _, err := p.GenerateKeyPair()
			require.NoError(t, err)
			for i := 0; i < 5; i++ {
				key, err := p.GenerateSymmetricKey()
				require.NoError(t, err)
				sealed, err := p.Encrypt(key, pub)
				require.NoError(t, err)
				assert.Len(t, sealed, p.EncryptedKeyLen())
			}
		})
	}
}

func TestProviderWrongPrivateKey(t *testing.T) {
	for _, p := range allProviders(t) {
		t.Run(p.Suite(), func(t *testing.T) {
			pub, _, err := p.GenerateKeyPair()
			require.NoError(t, err)
			_, otherPriv, err := p.GenerateKeyPair()
			require.NoError(t, err)

			key, err := p.GenerateSymmetricKey()
			require.NoError(t, err)
			sealed, err := p.Encrypt(key, pub)
			require.NoError(t, err)

			_, err = p.Decrypt(sealed, otherPriv)
			assert.ErrorIs(t, err, ErrDecrypt)
		})
	}
}

func TestProviderTamperedSealedKey(t *testing.T) {
	for _, p := range allProviders(t) {
		t.Run(p.Suite(), func(t *testing.T) {
			pub, priv, err := p.GenerateKeyPair()
			require.NoError(t, err)
			key, err := p.GenerateSymmetricKey()
			require.NoError(t, err)
			sealed, err := p.Encrypt(key, pub)
			require.NoError(t, err)

			sealed[len(sealed)-1] ^= 0x01
			_, err = p.Decrypt(sealed, priv)
			assert.ErrorIs(t, err, ErrDecrypt)
		})
	}
}

func TestProviderSymmetricRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		[]byte("000000000004003hello"),
		bytes.Repeat([]byte{0x42}, 4096),
	}
	for _, p := range allProviders(t) {
		t.Run(p.Suite(), func(t *testing.T) {
			key, err := p.GenerateSymmetricKey()
			require.NoError(t, err)
			for _, payload := range payloads {
				ct, err := p.SymmetricEncrypt(key, payload)
				require.NoError(t, err)
				assert.NotEqual(t, payload, ct)

				pt, err := p.SymmetricDecrypt(key, ct)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(payload, pt))
			}
		})
	}
}

func TestX25519SymmetricTamper(t *testing.T) {
	p := X25519Provider{}
	key, err := p.GenerateSymmetricKey()
	require.NoError(t, err)
	ct, err := p.SymmetricEncrypt(key, []byte("payload"))
	require.NoError(t, err)

	ct[len(ct)-1] ^= 0xff
	_, err = p.SymmetricDecrypt(key, ct)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = p.SymmetricDecrypt(key, ct[:10])
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestValidatePublicKeyRejectsGarbage(t *testing.T) {
	for _, p := range allProviders(t) {
		t.Run(p.Suite(), func(t *testing.T) {
			assert.ErrorIs(t, p.ValidatePublicKey(nil), ErrInvalidKey)
			assert.ErrorIs(t, p.ValidatePublicKey([]byte("not a key")), ErrInvalidKey)
		})
	}
}

func TestValidatePublicKeyCrossSuite(t *testing.T) {
	x := X25519Provider{}
	r := RSAProvider{}

	xPub, _, err := x.GenerateKeyPair()
	require.NoError(t, err)
	rPub, _, err := r.GenerateKeyPair()
	require.NoError(t, err)

	assert.ErrorIs(t, r.ValidatePublicKey(xPub), ErrInvalidKey)
	assert.ErrorIs(t, x.ValidatePublicKey(rPub), ErrInvalidKey)
}

func TestExportImportPublicKey(t *testing.T) {
	for _, p := range allProviders(t) {
		t.Run(p.Suite(), func(t *testing.T) {
			pub, _, err := p.GenerateKeyPair()
			require.NoError(t, err)

			s := ExportKey(pub)
			assert.NotEmpty(t, s)

			imported, err := ImportPublicKey(p, s)
			require.NoError(t, err)
			assert.Equal(t, pub, imported)
		})
	}

	_, err := ImportPublicKey(X25519Provider{}, "!!!not base64!!!")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestImportSymmetricKey(t *testing.T) {
	_, err := ImportSymmetricKey(make([]byte, SymmetricKeySize-1))
	assert.ErrorIs(t, err, ErrInvalidKey)

	key, err := ImportSymmetricKey(make([]byte, SymmetricKeySize))
	require.NoError(t, err)
	assert.Len(t, key, SymmetricKeySize)
}
