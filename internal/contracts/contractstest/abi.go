package contractstest

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// VaultABIJSON is a small vault-like ABI covering scalar, multi-output and
// struct returns.
const VaultABIJSON = `[
  {"inputs": [], "name": "totalAssets", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "uint8", "name": "tier", "type": "uint8"}], "name": "tierLimit", "outputs": [{"internalType": "int64", "name": "", "type": "int64"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "supplyInfo", "outputs": [{"internalType": "uint256", "name": "supply", "type": "uint256"}, {"internalType": "uint8", "name": "decimals", "type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "state", "outputs": [{"components": [{"internalType": "uint256", "name": "assets", "type": "uint256"}, {"internalType": "bool", "name": "paused", "type": "bool"}], "internalType": "struct Vault.State", "name": "", "type": "tuple"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"internalType": "string", "name": "", "type": "string"}], "stateMutability": "view", "type": "function"}
]`

// VaultABI parses VaultABIJSON.
func VaultABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(VaultABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Method returns a method of parsed by name.
func Method(parsed abi.ABI, name string) *abi.Method {
	method, ok := parsed.Methods[name]
	if !ok {
		panic("unknown method " + name)
	}
	return &method
}
