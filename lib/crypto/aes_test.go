package crypto

import (
	"bytes"
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESCBCEncryptDecrypt(t *testing.T) {
	key, err := randomSymmetricKey()
	require.NoError(t, err)

	testCases := []struct {
		name      string
		plaintext []byte
	}{
		{"Empty string", []byte("")},
		{"Short string", []byte("Hello, World!")},
		{"Long string", bytes.Repeat([]byte("A"), 1000)},
		{"Exact block size", bytes.Repeat([]byte("A"), aes.BlockSize)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ciphertext, err := aesCBCEncrypt(key, tc.plaintext)
			require.NoError(t, err)
			assert.Zero(t, len(ciphertext)%aes.BlockSize)
			assert.Greater(t, len(ciphertext), len(tc.plaintext)+aes.BlockSize-1)

			decrypted, err := aesCBCDecrypt(key, ciphertext)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tc.plaintext, decrypted))
		})
	}
}

func TestAESCBCFreshIV(t *testing.T) {
	key, err := randomSymmetricKey()
	require.NoError(t, err)

	a, err := aesCBCEncrypt(key, []byte("same input"))
	require.NoError(t, err)
	b, err := aesCBCEncrypt(key, []byte("same input"))
	require.NoError(t, err)
	assert.NotEqual(t, a[:aes.BlockSize], b[:aes.BlockSize])
	assert.NotEqual(t, a, b)
}

func TestAESCBCDecryptShortInput(t *testing.T) {
	key, err := randomSymmetricKey()
	require.NoError(t, err)

	for _, n := range []int{0, aes.BlockSize, aes.BlockSize + 3} {
		_, err := aesCBCDecrypt(key, make([]byte, n))
		assert.ErrorIs(t, err, ErrDecrypt)
	}
}

func TestAESCBCInvalidKey(t *testing.T) {
	_, err := aesCBCEncrypt(SymmetricKey([]byte("short")), []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPKCS7PadUnpad(t *testing.T) {
	for n := 0; n <= 2*aes.BlockSize; n++ {
		data := bytes.Repeat([]byte{0xAB}, n)
		padded := pkcs7Pad(data, aes.BlockSize)
		assert.Zero(t, len(padded)%aes.BlockSize)
		assert.Greater(t, len(padded), n)

		unpadded, err := pkcs7Unpad(padded)
		require.NoError(t, err)
		assert.Equal(t, data, unpadded)
	}
}

func TestPKCS7UnpadInvalid(t *testing.T) {
	cases := map[string][]byte{
		"empty":        {},
		"zero padding": append(bytes.Repeat([]byte{1}, 15), 0),
		"too large":    append(bytes.Repeat([]byte{1}, 15), 17),
		"inconsistent": append(bytes.Repeat([]byte{1}, 13), 2, 3, 3),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := pkcs7Unpad(data)
			assert.ErrorIs(t, err, ErrDecrypt)
		})
	}
}
