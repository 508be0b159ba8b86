package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Library holds contract ABIs keyed by contract type.
type Library struct {
	abis map[string]*abi.ABI
}

func NewLibrary() *Library {
	return &Library{abis: make(map[string]*abi.ABI)}
}

// LoadLibrary walks dir and loads every JSON file that is either a bare ABI
// array or a build artifact with an "abi" field. Artifacts are keyed by their
// contractName, bare ABIs by the file name without extension.
func LoadLibrary(dir string) (*Library, error) {
	if dir == "" {
		return nil, fmt.Errorf("abis path is required")
	}

	lib := NewLibrary()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".dbg.json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read artifact %s: %w", path, err)
		}
		name, raw, ok := artifactABI(path, data)
		if !ok {
			return nil
		}
		if err := lib.RegisterJSON(name, raw); err != nil {
			return fmt.Errorf("artifact %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load abis: %w", err)
	}

	return lib, nil
}

func artifactABI(path string, data []byte) (string, []byte, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return stem, trimmed, true
	}

	var artifact struct {
		ContractName string          `json:"contractName"`
		ABI          json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(trimmed, &artifact); err != nil || len(artifact.ABI) == 0 {
		return "", nil, false
	}
	if artifact.ContractName != "" {
		stem = artifact.ContractName
	}
	return stem, artifact.ABI, true
}

// RegisterJSON parses an ABI document and stores it under name.
func (l *Library) RegisterJSON(name string, data []byte) error {
	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse abi %s: %w", name, err)
	}
	l.Register(name, &parsed)
	return nil
}

func (l *Library) Register(name string, parsed *abi.ABI) {
	l.abis[name] = parsed
}

// Get returns the ABI registered for a contract type.
func (l *Library) Get(contractType string) (*abi.ABI, error) {
	parsed, ok := l.abis[contractType]
	if !ok {
		return nil, fmt.Errorf("unknown contract type %s", contractType)
	}
	return parsed, nil
}

// Method looks up a function by name or by full signature, e.g.
// "balanceOf(address)" for overloaded functions.
func (l *Library) Method(contractType, function string) (*abi.Method, error) {
	parsed, err := l.Get(contractType)
	if err != nil {
		return nil, err
	}

	if strings.Contains(function, "(") {
		for _, method := range parsed.Methods {
			if method.Sig == function {
				m := method
				return &m, nil
			}
		}
		return nil, fmt.Errorf("%s has no function %s", contractType, function)
	}

	method, ok := parsed.Methods[function]
	if !ok {
		return nil, fmt.Errorf("%s has no function %s", contractType, function)
	}
	return &method, nil
}

// Names returns the registered contract types in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.abis))
	for name := range l.abis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
