package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller performs an eth_call at a block height.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// BoundFunction is a contract function with its target and packed-ready arguments.
type BoundFunction struct {
	Target common.Address
	Method *abi.Method
	Args   []interface{}
}

// CallData returns the selector followed by the encoded arguments.
func (f BoundFunction) CallData() ([]byte, error) {
	input, err := f.Method.Inputs.Pack(f.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", f.Method.Sig, err)
	}
	data := make([]byte, 0, len(f.Method.ID)+len(input))
	data = append(data, f.Method.ID...)
	return append(data, input...), nil
}

// Decode unpacks return data against the function outputs.
func (f BoundFunction) Decode(data []byte) (Value, error) {
	value, err := decodeOutputs(f.Method, data)
	if err != nil {
		return Value{}, &DecodeError{Function: f.Method.Sig, Target: f.Target, Data: data, Err: err}
	}
	return value, nil
}

func (f BoundFunction) String() string {
	args := make([]string, 0, len(f.Args))
	for _, arg := range f.Args {
		args = append(args, fmt.Sprintf("%v", arg))
	}
	return fmt.Sprintf("%s.%s(%s)", f.Target.Hex(), f.Method.RawName, strings.Join(args, ","))
}

// Call executes a single function through eth_call at blockNumber.
func Call(ctx context.Context, caller Caller, fn BoundFunction, blockNumber uint64) (Value, error) {
	data, err := fn.CallData()
	if err != nil {
		return Value{}, err
	}

	target := fn.Target
	msg := ethereum.CallMsg{To: &target, Data: data}
	resp, err := caller.CallContract(ctx, msg, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return Value{}, fmt.Errorf("call %s: %w", fn.Method.Sig, err)
	}
	return fn.Decode(resp)
}
