package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"

	"github.com/go-i2p/crypto/rand"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// aesCBCEncrypt encrypts data using AES-CBC with PKCS#7 padding under a fresh
// random IV, and returns IV ‖ ciphertext.
func aesCBCEncrypt(key SymmetricKey, data []byte) ([]byte, error) {
	log.WithField("data_length", len(data)).Debug("Encrypting data")

	block, err := aes.NewCipher(key)
	if err != nil {
		log.WithError(err).Error("Failed to create AES cipher")
		return nil, oops.Wrapf(ErrInvalidKey, "AES key: %v", err)
	}

	plaintext := pkcs7Pad(data, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(plaintext))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, oops.Wrapf(err, "failed to generate IV")
	}

	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out[aes.BlockSize:], plaintext)

	log.WithField("ciphertext_length", len(out)).Debug("Data encrypted successfully")
	return out, nil
}

// aesCBCDecrypt reads the IV prefix, decrypts the rest with AES-CBC and removes
// the PKCS#7 padding.
func aesCBCDecrypt(key SymmetricKey, data []byte) ([]byte, error) {
	log.WithField("data_length", len(data)).Debug("Decrypting data")

	block, err := aes.NewCipher(key)
	if err != nil {
		log.WithError(err).Error("Failed to create AES cipher")
		return nil, oops.Wrapf(ErrInvalidKey, "AES key: %v", err)
	}

	if len(data) < 2*aes.BlockSize || len(data)%aes.BlockSize != 0 {
		log.WithField("data_length", len(data)).Error("Ciphertext is not a multiple of the block size")
		return nil, oops.Wrapf(ErrDecrypt, "ciphertext length %d is not IV plus whole blocks", len(data))
	}

	iv, body := data[:aes.BlockSize], data[aes.BlockSize:]
	plaintext := make([]byte, len(body))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, body)

	plaintext, err = pkcs7Unpad(plaintext)
	if err != nil {
		log.WithError(err).Error("Failed to unpad plaintext")
		return nil, err
	}

	log.WithField("plaintext_length", len(plaintext)).Debug("Data decrypted successfully")
	return plaintext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	log.WithFields(logger.Fields{
		"data_length": len(data),
		"block_size":  blockSize,
	}).Debug("Applying PKCS#7 padding")

	padding := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data), len(data)+padding)
	copy(padded, data)
	return append(padded, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	length := len(data)
	if length == 0 {
		return nil, oops.Wrapf(ErrDecrypt, "data is empty")
	}
	padding := int(data[length-1])
	if padding == 0 || padding > aes.BlockSize {
		log.WithField("padding", padding).Error("Invalid padding")
		return nil, oops.Wrapf(ErrDecrypt, "invalid padding")
	}
	paddingStart := length - padding
	for i := paddingStart; i < length; i++ {
		if data[i] != byte(padding) {
			log.Error("Invalid padding")
			return nil, oops.Wrapf(ErrDecrypt, "invalid padding")
		}
	}

	return data[:paddingStart], nil
}
