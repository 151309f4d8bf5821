package relay

import (
	"bytes"
	"sync"

	"github.com/go-i2p/go-onion/lib/address"
)

// diagnostics holds the observability copies of the last delivery. Values may
// be overwritten by interleaved deliveries.
type diagnostics struct {
	mu sync.RWMutex

	lastEncrypted   []byte
	haveEncrypted   bool
	lastDecrypted   []byte
	haveDecrypted   bool
	lastDestination address.Address
}

func (d *diagnostics) recordEncrypted(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastEncrypted = bytes.Clone(b)
	d.haveEncrypted = true
}

func (d *diagnostics) recordDecrypted(b []byte, next address.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastDecrypted = bytes.Clone(b)
	d.haveDecrypted = true
	d.lastDestination = next
}

func (d *diagnostics) encrypted() ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return bytes.Clone(d.lastEncrypted), d.haveEncrypted
}

func (d *diagnostics) decrypted() ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return bytes.Clone(d.lastDecrypted), d.haveDecrypted
}

func (d *diagnostics) destination() (address.Address, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastDestination, d.haveDecrypted
}
