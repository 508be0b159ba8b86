package addrbook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// LoadFile reads an address book from a JSON or YAML file. The file holds a
// flat mapping; when its keys are address literals it is read as
// address -> alias, otherwise as alias -> address.
func LoadFile(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read address book: %w", err)
	}

	raw := make(map[string]string)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse address book %s: %w", path, err)
	}

	return Parse(raw)
}

// Parse builds a Map from a raw mapping, detecting its direction.
func Parse(raw map[string]string) (*Map, error) {
	addrKeys := 0
	for key := range raw {
		if LooksLikeAddress(key) {
			addrKeys++
		}
	}

	switch {
	case len(raw) == 0:
		return NewMapFromNames(nil), nil
	case addrKeys == len(raw):
		entries := make(map[common.Address]string, len(raw))
		for key, name := range raw {
			addr, err := ParseAddress(key)
			if err != nil {
				return nil, fmt.Errorf("address book entry %q: %w", name, err)
			}
			entries[addr] = name
		}
		return NewMapFromAddresses(entries), nil
	case addrKeys == 0:
		entries := make(map[string]common.Address, len(raw))
		for name, value := range raw {
			addr, err := ParseAddress(value)
			if err != nil {
				return nil, fmt.Errorf("address book entry %q: %w", name, err)
			}
			entries[name] = addr
		}
		return NewMapFromNames(entries), nil
	default:
		return nil, fmt.Errorf("address book mixes address and alias keys")
	}
}
