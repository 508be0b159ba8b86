package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Commitment is the block tag the exporter polls.
type Commitment string

const (
	Finalized Commitment = "finalized"
	Safe      Commitment = "safe"
	Latest    Commitment = "latest"
)

// ParseCommitment accepts finalized, safe and latest. Pending blocks are
// rejected since their contents can still change.
func ParseCommitment(input string) (Commitment, error) {
	switch Commitment(strings.ToLower(strings.TrimSpace(input))) {
	case "", Finalized:
		return Finalized, nil
	case Safe:
		return Safe, nil
	case Latest:
		return Latest, nil
	default:
		return "", fmt.Errorf("unsupported block commitment level %q", input)
	}
}

// BlockNumber returns the go-ethereum tag for c.
func (c Commitment) BlockNumber() rpc.BlockNumber {
	switch c {
	case Safe:
		return rpc.SafeBlockNumber
	case Latest:
		return rpc.LatestBlockNumber
	default:
		return rpc.FinalizedBlockNumber
	}
}

func (c Commitment) bigInt() *big.Int {
	return big.NewInt(c.BlockNumber().Int64())
}
