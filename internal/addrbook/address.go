package addrbook

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress validates an address literal and returns it in checksum form.
// Lowercase and uppercase literals are normalized; mixed-case literals must
// already carry a valid EIP-55 checksum.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "0x") || !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("'%s' is not a valid address", input)
	}

	addr := common.HexToAddress(input)
	digits := input[2:]
	if digits == strings.ToLower(digits) || digits == strings.ToUpper(digits) {
		return addr, nil
	}
	if addr.Hex() != input {
		return common.Address{}, fmt.Errorf("'%s' is not a valid checksum address", input)
	}
	return addr, nil
}

// LooksLikeAddress reports whether a configuration token should be parsed as
// an address literal instead of being resolved as an alias.
func LooksLikeAddress(token string) bool {
	return strings.HasPrefix(strings.TrimSpace(token), "0x")
}

// ShortName is the display name used for addresses without an alias.
func ShortName(addr common.Address) string {
	hex := addr.Hex()
	return fmt.Sprintf("0x%s...%s", hex[2:6], hex[len(hex)-4:])
}
