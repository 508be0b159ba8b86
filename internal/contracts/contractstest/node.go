// Package contractstest provides an in-memory node answering eth_call
// requests, including Multicall3 aggregate3 batches.
package contractstest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ensuro/eth-exporter/internal/contracts"
)

// ErrReverted is returned for calls without a registered handler.
var ErrReverted = errors.New("execution reverted")

// Handler answers one call with raw return data.
type Handler func(block uint64, args []interface{}) ([]byte, error)

type handlerKey struct {
	target   common.Address
	selector [4]byte
}

type registered struct {
	method  *abi.Method
	handler Handler
}

// Node is a fake Caller. It is safe for concurrent use.
type Node struct {
	Multicall common.Address
	Delay     time.Duration

	mu       sync.RWMutex
	handlers map[handlerKey]registered

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	calls       atomic.Int64
	failCalls   error
}

func NewNode() *Node {
	return &Node{
		Multicall: common.HexToAddress(contracts.DefaultMulticall3Address),
		handlers:  make(map[handlerKey]registered),
	}
}

// Handle registers a handler for method at target.
func (n *Node) Handle(target common.Address, method *abi.Method, handler Handler) {
	var selector [4]byte
	copy(selector[:], method.ID)

	n.mu.Lock()
	n.handlers[handlerKey{target: target, selector: selector}] = registered{method: method, handler: handler}
	n.mu.Unlock()
}

// Return registers a handler that always returns values encoded with the
// method outputs.
func (n *Node) Return(target common.Address, method *abi.Method, values ...interface{}) error {
	data, err := method.Outputs.Pack(values...)
	if err != nil {
		return fmt.Errorf("pack %s outputs: %w", method.Sig, err)
	}
	n.Handle(target, method, func(uint64, []interface{}) ([]byte, error) {
		return data, nil
	})
	return nil
}

// FailTransport makes every subsequent CallContract fail with err.
func (n *Node) FailTransport(err error) {
	n.mu.Lock()
	n.failCalls = err
	n.mu.Unlock()
}

// MaxInFlight returns the highest number of concurrent CallContract calls observed.
func (n *Node) MaxInFlight() int64 {
	return n.maxInFlight.Load()
}

// Calls returns the number of CallContract round trips served.
func (n *Node) Calls() int64 {
	return n.calls.Load()
}

func (n *Node) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	current := n.inFlight.Add(1)
	defer n.inFlight.Add(-1)
	for {
		seen := n.maxInFlight.Load()
		if current <= seen || n.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}
	n.calls.Add(1)

	if n.Delay > 0 {
		timer := time.NewTimer(n.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	n.mu.RLock()
	failure := n.failCalls
	n.mu.RUnlock()
	if failure != nil {
		return nil, failure
	}

	if msg.To == nil {
		return nil, fmt.Errorf("missing call target")
	}
	block := uint64(0)
	if blockNumber != nil {
		block = blockNumber.Uint64()
	}

	if *msg.To == n.Multicall {
		if mcABI, err := contracts.Multicall3ABI(); err == nil && len(msg.Data) >= 4 && bytes.Equal(msg.Data[:4], mcABI.Methods["aggregate3"].ID) {
			return n.aggregate3(mcABI, block, msg.Data[4:])
		}
	}
	return n.dispatch(*msg.To, block, msg.Data)
}

func (n *Node) dispatch(target common.Address, block uint64, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, ErrReverted
	}
	var selector [4]byte
	copy(selector[:], data[:4])

	n.mu.RLock()
	entry, ok := n.handlers[handlerKey{target: target, selector: selector}]
	n.mu.RUnlock()
	if !ok {
		return nil, ErrReverted
	}

	args, err := entry.method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack %s inputs: %w", entry.method.Sig, err)
	}
	return entry.handler(block, args)
}

func (n *Node) aggregate3(mcABI abi.ABI, block uint64, input []byte) ([]byte, error) {
	method := mcABI.Methods["aggregate3"]
	values, err := method.Inputs.Unpack(input)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	calls := *abi.ConvertType(values[0], new([]contracts.Call3)).(*[]contracts.Call3)

	results := make([]contracts.Call3Result, 0, len(calls))
	for _, call := range calls {
		data, err := n.dispatch(call.Target, block, call.CallData)
		if err != nil {
			if !call.AllowFailure {
				return nil, fmt.Errorf("multicall3: call failed")
			}
			results = append(results, contracts.Call3Result{Success: false, ReturnData: []byte{}})
			continue
		}
		results = append(results, contracts.Call3Result{Success: true, ReturnData: data})
	}
	return method.Outputs.Pack(results)
}
