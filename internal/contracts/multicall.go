package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultMulticall3Address is the Multicall3 deployment shared by most EVM chains.
const DefaultMulticall3Address = "0xcA11bde05977b3631167028862bE2a173976CA11"

const multicall3ABIJSON = `[
  {
    "inputs": [
      {
        "components": [
          {"internalType": "address", "name": "target", "type": "address"},
          {"internalType": "bool", "name": "allowFailure", "type": "bool"},
          {"internalType": "bytes", "name": "callData", "type": "bytes"}
        ],
        "internalType": "struct Multicall3.Call3[]",
        "name": "calls",
        "type": "tuple[]"
      }
    ],
    "name": "aggregate3",
    "outputs": [
      {
        "components": [
          {"internalType": "bool", "name": "success", "type": "bool"},
          {"internalType": "bytes", "name": "returnData", "type": "bytes"}
        ],
        "internalType": "struct Multicall3.Result[]",
        "name": "returnData",
        "type": "tuple[]"
      }
    ],
    "stateMutability": "payable",
    "type": "function"
  }
]`

var (
	multicall3ABI     abi.ABI
	multicall3ABIOnce sync.Once
	multicall3ABIErr  error
)

// Multicall3ABI returns the parsed aggregate3 ABI.
func Multicall3ABI() (abi.ABI, error) {
	multicall3ABIOnce.Do(func() {
		multicall3ABI, multicall3ABIErr = abi.JSON(strings.NewReader(multicall3ABIJSON))
	})
	return multicall3ABI, multicall3ABIErr
}

// Call3 is one aggregate3 request entry.
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Call3Result is one aggregate3 response entry.
type Call3Result struct {
	Success    bool
	ReturnData []byte
}

// Outcome is the demultiplexed result of one batched function.
// Err is a *CallFailedError when the call reverted and a *DecodeError when
// its return data did not decode.
type Outcome struct {
	Success    bool
	ReturnData []byte
	Value      Value
	Err        error
}

// Aggregator batches independent calls into one Multicall3 aggregate3 call.
type Aggregator struct {
	caller  Caller
	address common.Address
	mcABI   abi.ABI
}

func NewAggregator(caller Caller, address common.Address) (*Aggregator, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is nil")
	}
	mcABI, err := Multicall3ABI()
	if err != nil {
		return nil, fmt.Errorf("parse multicall3 abi: %w", err)
	}
	return &Aggregator{caller: caller, address: address, mcABI: mcABI}, nil
}

func (a *Aggregator) Address() common.Address {
	return a.address
}

// Aggregate executes fns in a single round trip at blockNumber. Outcomes are
// positionally aligned to fns. The returned error is set only when the
// aggregate call itself fails.
func (a *Aggregator) Aggregate(ctx context.Context, blockNumber uint64, fns []BoundFunction) ([]Outcome, error) {
	if len(fns) == 0 {
		return nil, nil
	}

	calls := make([]Call3, 0, len(fns))
	for _, fn := range fns {
		data, err := fn.CallData()
		if err != nil {
			return nil, err
		}
		calls = append(calls, Call3{Target: fn.Target, AllowFailure: true, CallData: data})
	}

	input, err := a.mcABI.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}

	target := a.address
	resp, err := a.caller.CallContract(ctx, ethereum.CallMsg{To: &target, Data: input}, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("call aggregate3: %w", err)
	}

	var results []Call3Result
	if err := a.mcABI.UnpackIntoInterface(&results, "aggregate3", resp); err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(results) != len(fns) {
		return nil, fmt.Errorf("aggregate3 returned %d results for %d calls", len(results), len(fns))
	}

	outcomes := make([]Outcome, len(fns))
	for i, result := range results {
		outcome := Outcome{Success: result.Success, ReturnData: result.ReturnData}
		if !result.Success {
			outcome.Err = &CallFailedError{Function: fns[i].Method.Sig, Target: fns[i].Target, ReturnData: result.ReturnData}
		} else {
			outcome.Value, outcome.Err = fns[i].Decode(result.ReturnData)
		}
		outcomes[i] = outcome
	}
	return outcomes, nil
}
