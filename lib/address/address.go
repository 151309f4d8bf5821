// Package address implements the fixed-width routable address carried inside
// every onion layer.
//
// An address is the decimal rendering of an IPv4 address and TCP port packed
// into 48 bits (ip<<16 | port), left-padded with zeros to Width characters.
// Width is the digit count of the largest packed value, so every address has
// the same length on every hop and a relay can split a decrypted layer at a
// fixed offset.
package address

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/go-i2p/go-onion/lib/protocol"
)

const (
	// MaxValue is the largest packed endpoint value: 32 bits of IPv4 address
	// followed by 16 bits of port.
	MaxValue uint64 = 1<<48 - 1

	// Width is the number of decimal digits of MaxValue.
	Width = 15
)

// Address is a fixed-width, zero-padded decimal routable address.
type Address string

// FromValue renders a packed endpoint value as an Address.
func FromValue(v uint64) (Address, error) {
	if v > MaxValue {
		return "", oops.Wrapf(protocol.ErrValidation, "address value %d exceeds %d", v, MaxValue)
	}
	return Address(fmt.Sprintf("%0*d", Width, v)), nil
}

// FromEndpoint packs a "host:port" endpoint into an Address. The host must be
// an IPv4 literal; "localhost" is accepted as 127.0.0.1.
func FromEndpoint(endpoint string) (Address, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", oops.Wrapf(protocol.ErrValidation, "invalid endpoint %q: %v", endpoint, err)
	}
	if host == "localhost" {
		host = "127.0.0.1"
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !ip.Unmap().Is4() {
		return "", oops.Wrapf(protocol.ErrValidation, "endpoint %q is not an IPv4 address", endpoint)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return "", oops.Wrapf(protocol.ErrValidation, "endpoint %q has invalid port", endpoint)
	}

	b := ip.Unmap().As4()
	v := uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 | uint64(b[3])<<16 | port
	return FromValue(v)
}

// Parse validates s as an Address: exactly Width decimal digits encoding a
// non-zero port.
func Parse(s string) (Address, error) {
	if len(s) != Width {
		return "", oops.Wrapf(protocol.ErrValidation, "address must be %d characters, got %d", Width, len(s))
	}
	if strings.TrimLeft(s, "0123456789") != "" {
		return "", oops.Wrapf(protocol.ErrValidation, "address %q is not decimal", s)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v > MaxValue {
		return "", oops.Wrapf(protocol.ErrValidation, "address %q out of range", s)
	}
	if v&0xffff == 0 {
		return "", oops.Wrapf(protocol.ErrValidation, "address %q has port 0", s)
	}
	return Address(s), nil
}

// Value returns the packed numeric value. It returns 0 for an Address that
// was not produced by this package.
func (a Address) Value() uint64 {
	v, err := strconv.ParseUint(string(a), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Endpoint returns the "ip:port" form of the address.
func (a Address) Endpoint() string {
	v := a.Value()
	ip := netip.AddrFrom4([4]byte{byte(v >> 40), byte(v >> 32), byte(v >> 24), byte(v >> 16)})
	return netip.AddrPortFrom(ip, uint16(v)).String()
}

// URL returns the JSON-RPC endpoint URL of the node at this address.
func (a Address) URL() string {
	return "http://" + a.Endpoint() + "/jsonrpc"
}

// String returns the fixed-width decimal form.
func (a Address) String() string {
	return string(a)
}
