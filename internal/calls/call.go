package calls

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/ensuro/eth-exporter/internal/addrbook"
	"github.com/ensuro/eth-exporter/internal/contracts"
)

// CallResult is the outcome of a ContractCall at one address.
// Err is set only for a slot that failed inside a multicall batch.
type CallResult struct {
	Address addrbook.NamedAddress
	Value   contracts.Value
	Labels  map[string]string
	Err     error
}

// ContractCall is one contract function with fixed arguments, replicated
// across every address.
type ContractCall struct {
	ContractType string
	Function     string
	Method       *abi.Method
	Arguments    []Argument
	Addresses    []addrbook.NamedAddress
	Bindings     []*Binding

	encoded []interface{}
}

// NewContractCall resolves function in the ABI of contractType and encodes
// the arguments once.
func NewContractCall(lib *contracts.Library, contractType, function string, args []Argument, addresses []addrbook.NamedAddress) (*ContractCall, error) {
	method, err := lib.Method(contractType, function)
	if err != nil {
		return nil, err
	}
	if len(args) != len(method.Inputs) {
		return nil, fmt.Errorf("%s.%s expects %d arguments, got %d", contractType, method.Sig, len(method.Inputs), len(args))
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%s.%s has no addresses", contractType, method.Sig)
	}

	encoded := make([]interface{}, len(args))
	for i, arg := range args {
		value, err := arg.Encode(method.Inputs[i].Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s argument %d: %w", contractType, method.Sig, i, err)
		}
		encoded[i] = value
	}

	call := &ContractCall{
		ContractType: contractType,
		Function:     function,
		Method:       method,
		Arguments:    args,
		Addresses:    addresses,
		encoded:      encoded,
	}

	seen := map[string]bool{baseLabelContract: true, baseLabelAddress: true}
	for _, label := range call.Labels() {
		if seen[label.Name] {
			return nil, fmt.Errorf("%s: duplicate label %s", call, label.Name)
		}
		seen[label.Name] = true
	}
	return call, nil
}

// Labels returns the labels of every argument in argument order.
func (c *ContractCall) Labels() []Label {
	var labels []Label
	for _, arg := range c.Arguments {
		labels = append(labels, arg.Labels()...)
	}
	return labels
}

func (c *ContractCall) LabelNames() []string {
	labels := c.Labels()
	names := make([]string, len(labels))
	for i, label := range labels {
		names[i] = label.Name
	}
	return names
}

func (c *ContractCall) LabelMap() map[string]string {
	labels := c.Labels()
	out := make(map[string]string, len(labels))
	for _, label := range labels {
		out[label.Name] = label.Value
	}
	return out
}

// Functions returns one bound function per address, in address order.
func (c *ContractCall) Functions() []contracts.BoundFunction {
	fns := make([]contracts.BoundFunction, len(c.Addresses))
	for i, addr := range c.Addresses {
		fns[i] = contracts.BoundFunction{Target: addr.Address, Method: c.Method, Args: c.encoded}
	}
	return fns
}

// Results pairs values with the call's addresses. values must be
// positionally aligned to Addresses.
func (c *ContractCall) Results(values []contracts.Value, errs []error) []CallResult {
	labels := c.LabelMap()
	results := make([]CallResult, len(c.Addresses))
	for i, addr := range c.Addresses {
		results[i] = CallResult{Address: addr, Labels: labels}
		if i < len(values) {
			results[i].Value = values[i]
		}
		if i < len(errs) {
			results[i].Err = errs[i]
		}
	}
	return results
}

// Publish updates every binding of the call. Binding failures are joined.
func (c *ContractCall) Publish(results []CallResult) error {
	var errs []error
	for _, binding := range c.Bindings {
		if err := binding.Update(results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *ContractCall) String() string {
	args := make([]string, len(c.Arguments))
	for i, arg := range c.Arguments {
		args[i] = arg.String()
	}
	name := c.Function
	if c.Method != nil {
		name = c.Method.RawName
	}
	return fmt.Sprintf("%s.%s(%s)", c.ContractType, name, strings.Join(args, ", "))
}
