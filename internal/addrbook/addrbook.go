// Package addrbook maps human-readable aliases to contract addresses and
// back. The exporter uses it to accept aliases in the metrics document and
// to label metric series with readable names.
//
// Production code loads a [Map] from the address book file; when no file is
// configured the [Nop] book is used and every address is displayed in its
// truncated form.
package addrbook

import (
	"github.com/ethereum/go-ethereum/common"
)

// AddressBook is a bidirectional alias table.
type AddressBook interface {
	// AddrToName returns the alias registered for addr, if any.
	AddrToName(addr common.Address) (string, bool)
	// NameToAddr returns the address registered under name, if any.
	NameToAddr(name string) (common.Address, bool)
	HasAddr(addr common.Address) bool
}

// Nop resolves nothing.
type Nop struct{}

func (Nop) AddrToName(common.Address) (string, bool)  { return "", false }
func (Nop) NameToAddr(string) (common.Address, bool) { return common.Address{}, false }
func (Nop) HasAddr(common.Address) bool               { return false }

// Map is an in-memory AddressBook backed by two maps.
type Map struct {
	names     map[common.Address]string
	addresses map[string]common.Address
}

// NewMapFromNames builds a Map from an alias -> address mapping.
func NewMapFromNames(names map[string]common.Address) *Map {
	m := &Map{
		names:     make(map[common.Address]string, len(names)),
		addresses: make(map[string]common.Address, len(names)),
	}
	for name, addr := range names {
		m.addresses[name] = addr
		m.names[addr] = name
	}
	return m
}

// NewMapFromAddresses builds a Map from an address -> alias mapping.
func NewMapFromAddresses(addresses map[common.Address]string) *Map {
	m := &Map{
		names:     make(map[common.Address]string, len(addresses)),
		addresses: make(map[string]common.Address, len(addresses)),
	}
	for addr, name := range addresses {
		m.names[addr] = name
		m.addresses[name] = addr
	}
	return m
}

func (m *Map) AddrToName(addr common.Address) (string, bool) {
	name, ok := m.names[addr]
	return name, ok
}

func (m *Map) NameToAddr(name string) (common.Address, bool) {
	addr, ok := m.addresses[name]
	return addr, ok
}

func (m *Map) HasAddr(addr common.Address) bool {
	_, ok := m.names[addr]
	return ok
}

// Len returns the number of aliases in the book.
func (m *Map) Len() int {
	return len(m.addresses)
}
