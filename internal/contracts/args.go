package contracts

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ConvertArgument converts a configuration string into the Go value the ABI
// packer expects for typ.
func ConvertArgument(typ abi.Type, raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)

	switch typ.T {
	case abi.AddressTy:
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("invalid address: %s", raw)
		}
		return common.HexToAddress(raw), nil
	case abi.UintTy, abi.IntTy:
		return convertInteger(typ, raw)
	case abi.BoolTy:
		val, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool: %s", raw)
		}
		return val, nil
	case abi.StringTy:
		return raw, nil
	case abi.BytesTy:
		data, err := hexutil.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes: %s", raw)
		}
		return data, nil
	case abi.FixedBytesTy:
		data, err := hexutil.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %s", typ.String(), raw)
		}
		if len(data) > typ.Size {
			return nil, fmt.Errorf("%s overflow: %s", typ.String(), raw)
		}
		out := reflect.New(typ.GetType()).Elem()
		reflect.Copy(out, reflect.ValueOf(data))
		return out.Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported argument type %s", typ.String())
	}
}

func convertInteger(typ abi.Type, raw string) (interface{}, error) {
	value, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %s", typ.String(), raw)
	}

	if typ.T == abi.UintTy {
		if value.Sign() < 0 || value.BitLen() > typ.Size {
			return nil, fmt.Errorf("%s overflow: %s", typ.String(), raw)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(typ.Size-1))
		if value.Cmp(limit) >= 0 || value.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("%s overflow: %s", typ.String(), raw)
		}
	}

	goType := typ.GetType()
	switch goType.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		out := reflect.New(goType).Elem()
		out.SetUint(value.Uint64())
		return out.Interface(), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out := reflect.New(goType).Elem()
		out.SetInt(value.Int64())
		return out.Interface(), nil
	default:
		return value, nil
	}
}
