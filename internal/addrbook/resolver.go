package addrbook

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NamedAddress is an address together with the name used to label it.
type NamedAddress struct {
	Address common.Address
	Name    string
}

func (n NamedAddress) String() string {
	return n.Name
}

// Resolver turns configuration tokens into NamedAddress values.
type Resolver struct {
	book AddressBook
}

// NewResolver builds a Resolver over book. A nil book resolves no aliases.
func NewResolver(book AddressBook) *Resolver {
	if book == nil {
		book = Nop{}
	}
	return &Resolver{book: book}
}

// Resolve accepts either an address literal or an alias.
func (r *Resolver) Resolve(token string) (NamedAddress, error) {
	token = strings.TrimSpace(token)
	if LooksLikeAddress(token) {
		addr, err := ParseAddress(token)
		if err != nil {
			return NamedAddress{}, err
		}
		return NamedAddress{Address: addr, Name: r.DisplayName(addr)}, nil
	}

	addr, ok := r.book.NameToAddr(token)
	if !ok {
		return NamedAddress{}, fmt.Errorf("cannot resolve '%s' to an address", token)
	}
	return NamedAddress{Address: addr, Name: token}, nil
}

// ResolveAll resolves every token, failing on the first unresolvable one.
func (r *Resolver) ResolveAll(tokens []string) ([]NamedAddress, error) {
	out := make([]NamedAddress, 0, len(tokens))
	for _, token := range tokens {
		named, err := r.Resolve(token)
		if err != nil {
			return nil, err
		}
		out = append(out, named)
	}
	return out, nil
}

// DisplayName returns the alias of addr or its truncated form.
func (r *Resolver) DisplayName(addr common.Address) string {
	if name, ok := r.book.AddrToName(addr); ok {
		return name
	}
	return ShortName(addr)
}
