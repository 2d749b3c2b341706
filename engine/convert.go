package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/wippyai/polyglot-native/errors"
)

// normalize converts a Go value into the engine representation:
// nil, bool, int64, float64, string, *Array, *Object or Executable.
func normalize(x any) (any, error) {
	switch t := x.(type) {
	case nil:
		return nil, nil
	case *Value:
		if t == nil {
			return nil, nil
		}
		return t.v, nil
	case bool, int64, float64, string, *Array, *Object:
		return t, nil
	case Executable:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint:
		return normalizeUint(uint64(t)), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return normalizeUint(t), nil
	case float32:
		return float64(t), nil
	case []byte:
		return string(t), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, errors.Wrap(errors.PhaseValue, errors.KindInvalidInput, err, "convert number")
		}
		return f, nil
	case *big.Int:
		if t.IsInt64() {
			return t.Int64(), nil
		}
		f, _ := new(big.Float).SetInt(t).Float64()
		return f, nil
	case *big.Float:
		if t.IsInt() {
			if n, acc := t.Int64(); acc == big.Exact {
				return n, nil
			}
		}
		f, _ := t.Float64()
		return f, nil
	case time.Time:
		return t.Format(time.RFC3339Nano), nil
	case []any:
		items := make([]any, len(t))
		for i, item := range t {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			items[i] = n
		}
		return NewArray(items...), nil
	case map[string]any:
		obj := NewObject()
		for _, k := range sortedKeys(t) {
			n, err := normalize(t[k])
			if err != nil {
				return nil, err
			}
			obj.Put(k, n)
		}
		return obj, nil
	}

	// Typed slices and maps, as produced by decoders.
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			n, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			items[i] = n
		}
		return NewArray(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return normalize(m)
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface())
	}

	return nil, errors.New(errors.PhaseValue, errors.KindUnsupported).
		Value(x).
		Detail("cannot represent Go type %T", x).
		Build()
}

func normalizeUint(n uint64) any {
	if n <= math.MaxInt64 {
		return int64(n)
	}
	return float64(n)
}

// plain converts an engine value back into plain Go data: maps, slices and
// scalars. Executables are kept as is.
func plain(x any) any {
	switch t := x.(type) {
	case *Array:
		items := t.Items()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = plain(item)
		}
		return out
	case *Object:
		out := make(map[string]any, t.Len())
		for _, k := range t.Keys() {
			m, _ := t.Get(k)
			out[k] = plain(m)
		}
		return out
	default:
		return t
	}
}

// Interface returns the value as plain Go data.
func (v *Value) Interface() any {
	return plain(v.v)
}

// NewValue wraps a Go value without binding it to a context.
func NewValue(x any) (*Value, error) {
	n, err := normalize(x)
	if err != nil {
		return nil, err
	}
	return &Value{v: n}, nil
}

// MustValue is like NewValue but panics on unsupported types.
func MustValue(x any) *Value {
	v, err := NewValue(x)
	if err != nil {
		panic(fmt.Sprintf("engine: %v", err))
	}
	return v
}
