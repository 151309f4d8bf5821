package protocol

import "errors"

var (
	// ErrValidation is returned for malformed requests: missing or ill-typed fields.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateNode is returned when a relay registers a node ID that is already present.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrDuplicateUser is returned when a client registers a user ID that is already present.
	ErrDuplicateUser = errors.New("duplicate user")

	// ErrCrypto is returned when a layer cannot be decrypted: wrong key,
	// corrupted ciphertext or structurally invalid offsets.
	ErrCrypto = errors.New("crypto error")

	// ErrInsufficientNodes is returned when fewer distinct relays than the
	// path length are available.
	ErrInsufficientNodes = errors.New("insufficient nodes")

	// ErrDirectoryUnreachable is returned when the directory cannot be contacted.
	ErrDirectoryUnreachable = errors.New("directory unreachable")

	// ErrUnknownDestination is returned when a destination user ID has no
	// registered address.
	ErrUnknownDestination = errors.New("unknown destination")

	// ErrNextHopUnreachable is returned when a forward to the next hop fails.
	ErrNextHopUnreachable = errors.New("next hop unreachable")

	// ErrRateLimited is returned when a relay refuses a delivery because its
	// inbound token bucket is empty.
	ErrRateLimited = errors.New("rate limited")
)

// JSON-RPC error codes for the taxonomy. ErrValidation reuses the standard
// "invalid params" code; the rest live in the implementation-defined range.
const (
	CodeValidation           = -32602
	CodeDuplicateNode        = -32010
	CodeDuplicateUser        = -32011
	CodeCrypto               = -32020
	CodeInsufficientNodes    = -32030
	CodeDirectoryUnreachable = -32031
	CodeUnknownDestination   = -32032
	CodeNextHopUnreachable   = -32040
	CodeRateLimited          = -32041
)

var codes = []struct {
	err  error
	code int
}{
	{ErrDuplicateNode, CodeDuplicateNode},
	{ErrDuplicateUser, CodeDuplicateUser},
	{ErrValidation, CodeValidation},
	{ErrCrypto, CodeCrypto},
	{ErrInsufficientNodes, CodeInsufficientNodes},
	{ErrDirectoryUnreachable, CodeDirectoryUnreachable},
	{ErrUnknownDestination, CodeUnknownDestination},
	{ErrNextHopUnreachable, CodeNextHopUnreachable},
	{ErrRateLimited, CodeRateLimited},
}

// Code returns the JSON-RPC error code for err, and false if err does not
// wrap any sentinel of the taxonomy.
func Code(err error) (int, bool) {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code, true
		}
	}
	return 0, false
}

// FromCode returns the sentinel registered for a JSON-RPC error code, or nil
// for codes outside the taxonomy.
func FromCode(code int) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

// IsDirectoryError reports whether err belongs to the DirectoryError category.
func IsDirectoryError(err error) bool {
	return errors.Is(err, ErrInsufficientNodes) ||
		errors.Is(err, ErrDirectoryUnreachable) ||
		errors.Is(err, ErrUnknownDestination)
}

// IsValidationError reports whether err belongs to the ValidationError category.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateNode) ||
		errors.Is(err, ErrDuplicateUser)
}
