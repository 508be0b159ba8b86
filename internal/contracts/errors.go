package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DecodeError reports return data that does not match the function outputs.
type DecodeError struct {
	Function string
	Target   common.Address
	Data     []byte
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at %s (return data %s): %v", e.Function, e.Target.Hex(), hexutil.Encode(e.Data), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CallFailedError reports a call that reverted inside a multicall batch.
type CallFailedError struct {
	Function   string
	Target     common.Address
	ReturnData []byte
}

func (e *CallFailedError) Error() string {
	return fmt.Sprintf("call %s at %s failed (return data %s)", e.Function, e.Target.Hex(), hexutil.Encode(e.ReturnData))
}
