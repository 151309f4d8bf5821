// Package protocol holds the contract shared by every go-onion node: protocol
// constants, the JSON-RPC method names and parameter types exchanged between
// directory, relays and clients, and the error taxonomy together with its
// JSON-RPC error codes.
//
// # Error Taxonomy
//
// Errors are plain sentinel values. Components add context with
// github.com/samber/oops, and errors.Is keeps matching the sentinel:
//
//	if errors.Is(err, protocol.ErrInsufficientNodes) {
//	    // fewer than PathLength relays are registered
//	}
//
// Every sentinel has a stable JSON-RPC code (see Code and FromCode) so a
// failure reported by a remote node maps back to the same sentinel on the
// calling side.
//
// # Categories
//
//   - ValidationError: ErrValidation, ErrDuplicateNode, ErrDuplicateUser
//   - CryptoError: ErrCrypto
//   - DirectoryError: ErrInsufficientNodes, ErrDirectoryUnreachable, ErrUnknownDestination
//   - NetworkError: ErrNextHopUnreachable, ErrRateLimited
package protocol
