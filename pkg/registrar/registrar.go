// Package registrar binds SIP identifiers to the network endpoint they last
// registered from.
package registrar

import (
	"net/netip"
	"sync"
)

// Endpoint is the UDP source address of the most recent REGISTER
type Endpoint = netip.AddrPort

// Registration is one directory entry
type Registration struct {
	Identifier string
	Endpoint   Endpoint
}

// Directory maps identifiers to endpoints.
// Last write wins and entries never expire.
type Directory struct {
	entries map[string]Endpoint
	mu      sync.RWMutex
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{
		entries: make(map[string]Endpoint),
	}
}

// Register binds identifier to endpoint, replacing any previous binding
func (d *Directory) Register(identifier string, endpoint Endpoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[identifier] = endpoint
}

// Lookup returns the endpoint bound to identifier
func (d *Directory) Lookup(identifier string) (Endpoint, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	endpoint, ok := d.entries[identifier]
	return endpoint, ok
}

// Len returns the number of registered identifiers
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Snapshot returns a copy of every registration in no particular order
func (d *Directory) Snapshot() []Registration {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Registration, 0, len(d.entries))
	for id, endpoint := range d.entries {
		out = append(out, Registration{Identifier: id, Endpoint: endpoint})
	}
	return out
}
