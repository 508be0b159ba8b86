package calls

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/ensuro/eth-exporter/internal/addrbook"
	"github.com/ensuro/eth-exporter/internal/config"
	"github.com/ensuro/eth-exporter/internal/contracts"
)

// Label is one metric label contributed by an argument.
type Label struct {
	Name  string
	Value string
}

// Argument is a positional call argument. It converts itself to the ABI input
// type and contributes zero or more labels to the metrics of its call.
type Argument interface {
	Encode(typ abi.Type) (interface{}, error)
	Labels() []Label
	String() string
}

// Plain is a literal argument converted from its string form.
type Plain struct {
	Raw   string
	Label string
}

func (p Plain) Encode(typ abi.Type) (interface{}, error) {
	return contracts.ConvertArgument(typ, p.Raw)
}

func (p Plain) Labels() []Label {
	if p.Label == "" {
		return nil
	}
	return []Label{{Name: p.Label, Value: p.Raw}}
}

func (p Plain) String() string {
	return p.Raw
}

// Address is an argument resolved through the address book. Its label
// carries the display name and <label>_address the checksum address.
type Address struct {
	Named addrbook.NamedAddress
	Label string
}

func (a Address) Encode(typ abi.Type) (interface{}, error) {
	if typ.T != abi.AddressTy {
		return nil, fmt.Errorf("address argument %s passed to %s parameter", a.Named.Name, typ.String())
	}
	return a.Named.Address, nil
}

func (a Address) Labels() []Label {
	if a.Label == "" {
		return nil
	}
	return []Label{
		{Name: a.Label, Value: a.Named.Name},
		{Name: a.Label + "_address", Value: a.Named.Address.Hex()},
	}
}

func (a Address) String() string {
	return a.Named.Name
}

type argumentLoader func(doc config.ArgumentDocument, resolver *addrbook.Resolver) (Argument, error)

var argumentKinds = map[string]argumentLoader{
	"":        loadPlain,
	"address": loadAddress,
}

// LoadArgument builds an Argument from its document form. Unknown types are
// treated as plain values.
func LoadArgument(doc config.ArgumentDocument, resolver *addrbook.Resolver) (Argument, error) {
	loader, ok := argumentKinds[strings.ToLower(strings.TrimSpace(doc.Type))]
	if !ok {
		loader = loadPlain
	}
	return loader(doc, resolver)
}

func loadPlain(doc config.ArgumentDocument, _ *addrbook.Resolver) (Argument, error) {
	return Plain{Raw: doc.Value, Label: doc.Label}, nil
}

func loadAddress(doc config.ArgumentDocument, resolver *addrbook.Resolver) (Argument, error) {
	if resolver == nil {
		resolver = addrbook.NewResolver(nil)
	}
	named, err := resolver.Resolve(doc.Value)
	if err != nil {
		return nil, err
	}
	return Address{Named: named, Label: doc.Label}, nil
}
