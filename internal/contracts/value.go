package contracts

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Value is a decoded function return value. Functions with a single
// non-tuple output yield a scalar; functions with several outputs or a single
// struct output yield a composite whose fields are keyed by their ABI names.
// Unnamed fields are keyed by their position.
type Value struct {
	scalar interface{}
	fields map[string]interface{}
}

// Scalar wraps a single return value.
func Scalar(v interface{}) Value {
	return Value{scalar: v}
}

// Composite wraps named return values.
func Composite(fields map[string]interface{}) Value {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return Value{fields: fields}
}

func (v Value) IsComposite() bool {
	return v.fields != nil
}

func (v Value) Scalar() interface{} {
	return v.scalar
}

// Field returns a named field of a composite value.
func (v Value) Field(name string) (interface{}, bool) {
	if v.fields == nil {
		return nil, false
	}
	field, ok := v.fields[name]
	return field, ok
}

func (v Value) String() string {
	if v.IsComposite() {
		return fmt.Sprintf("%v", v.fields)
	}
	return fmt.Sprintf("%v", v.scalar)
}

// decodeOutputs unpacks return data into a Value using the method outputs.
func decodeOutputs(method *abi.Method, data []byte) (Value, error) {
	values, err := method.Outputs.Unpack(data)
	if err != nil {
		return Value{}, err
	}
	if len(values) != len(method.Outputs) {
		return Value{}, fmt.Errorf("expected %d outputs, got %d", len(method.Outputs), len(values))
	}

	if len(values) == 1 {
		output := method.Outputs[0]
		if output.Type.T == abi.TupleTy {
			return tupleValue(output.Type, values[0])
		}
		return Scalar(values[0]), nil
	}

	fields := make(map[string]interface{}, len(values))
	for i, output := range method.Outputs {
		fields[fieldName(output.Name, i)] = values[i]
	}
	return Composite(fields), nil
}

func tupleValue(typ abi.Type, decoded interface{}) (Value, error) {
	rv := reflect.ValueOf(decoded)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || rv.NumField() != len(typ.TupleRawNames) {
		return Value{}, fmt.Errorf("unexpected tuple value %T", decoded)
	}

	fields := make(map[string]interface{}, rv.NumField())
	for i, name := range typ.TupleRawNames {
		fields[fieldName(name, i)] = rv.Field(i).Interface()
	}
	return Composite(fields), nil
}

// OutputFields returns the field names a composite return value of method
// carries. It returns false when method yields a scalar.
func OutputFields(method *abi.Method) ([]string, bool) {
	if len(method.Outputs) == 1 {
		output := method.Outputs[0]
		if output.Type.T != abi.TupleTy {
			return nil, false
		}
		names := make([]string, len(output.Type.TupleRawNames))
		for i, name := range output.Type.TupleRawNames {
			names[i] = fieldName(name, i)
		}
		return names, true
	}

	names := make([]string, len(method.Outputs))
	for i, output := range method.Outputs {
		names[i] = fieldName(output.Name, i)
	}
	return names, true
}

func fieldName(name string, index int) string {
	if name == "" {
		return strconv.Itoa(index)
	}
	return name
}

// ToFloat64 converts a decoded numeric value into a metric sample.
func ToFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	}

	n, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return f, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported numeric type %T", value)
	}
}
