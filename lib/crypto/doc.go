// Package crypto provides the two crypto suites used to build and peel onion
// layers.
//
// A suite pairs an asymmetric scheme, used to seal a fresh per-layer
// symmetric key to a relay's public key, with a symmetric scheme used to
// encrypt the layer body. Sealed keys have a fixed length per suite
// (Provider.EncryptedKeyLen) so a relay can split a layer without framing.
//
//   - x25519-chacha20poly1305 (default): ephemeral X25519 + HKDF-SHA256 +
//     ChaCha20-Poly1305 for keys, XChaCha20-Poly1305 for bodies.
//   - rsa-oaep-aes-cbc: RSA-2048 OAEP/SHA-256 for keys, AES-256-CBC with
//     PKCS#7 padding for bodies.
//
// Key material is exchanged as I2P base64 strings (ExportKey, ImportPublicKey).
package crypto
