// Package onion builds and peels layered onions.
//
// A layer is the sealed layer key, EncryptedKeyLen bytes for the suite,
// followed by the symmetric ciphertext of the next hop's address (address.Width
// bytes) and the inner payload:
//
//	layer = Encrypt(key, relayPub) ‖ SymmetricEncrypt(key, nextHop ‖ inner)
//
// Neither part carries a length prefix; the fixed sizes are the framing.
package onion
