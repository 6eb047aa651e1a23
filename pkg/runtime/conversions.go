package runtime

import (
	"fmt"
	"math"

	"github.com/chazu/capsulegen/pkg/binding"
)

// Conversion is the pair of primitives a cast adapter goes through. To
// converts a host value into the native representation of native; From
// converts back.
type Conversion struct {
	To   func(native binding.Type, v any) (any, error)
	From func(v any) (any, error)
}

// Conversions are keyed by host scalar name, matching py_<name>_to and
// py_<name>_from in generated native glue.
type Conversions map[binding.HostScalar]Conversion

// DefaultConversions returns the bool, str, int and float primitives.
func DefaultConversions() Conversions {
	return Conversions{
		binding.HostBool: {
			To: func(_ binding.Type, v any) (any, error) {
				b, ok := v.(bool)
				if !ok {
					return nil, fmt.Errorf("expected bool, got %T", v)
				}
				return b, nil
			},
			From: func(v any) (any, error) {
				b, ok := v.(bool)
				if !ok {
					return nil, fmt.Errorf("native value %T is not a bool", v)
				}
				return b, nil
			},
		},
		binding.HostStr: {
			To: func(_ binding.Type, v any) (any, error) {
				switch s := v.(type) {
				case string:
					return s, nil
				case []byte:
					return string(s), nil
				}
				return nil, fmt.Errorf("expected str, got %T", v)
			},
			From: func(v any) (any, error) {
				switch s := v.(type) {
				case string:
					return s, nil
				case []byte:
					return string(s), nil
				case fmt.Stringer:
					return s.String(), nil
				}
				return nil, fmt.Errorf("native value %T is not a string", v)
			},
		},
		binding.HostInt: {
			To: func(native binding.Type, v any) (any, error) {
				n, ok := toInt64(v)
				if !ok {
					return nil, fmt.Errorf("expected int, got %T", v)
				}
				if isUnsigned(native) {
					if n < 0 {
						return nil, fmt.Errorf("%d does not fit %s", n, native.FullName())
					}
					return uint64(n), nil
				}
				return n, nil
			},
			From: func(v any) (any, error) {
				n, ok := toInt64(v)
				if !ok {
					return nil, fmt.Errorf("native value %T is not an integer", v)
				}
				return n, nil
			},
		},
		binding.HostFloat: {
			To: func(_ binding.Type, v any) (any, error) {
				f, ok := toFloat64(v)
				if !ok {
					return nil, fmt.Errorf("expected float, got %T", v)
				}
				return f, nil
			},
			From: func(v any) (any, error) {
				f, ok := toFloat64(v)
				if !ok {
					return nil, fmt.Errorf("native value %T is not a number", v)
				}
				return f, nil
			},
		},
	}
}

func isUnsigned(t binding.Type) bool {
	switch t {
	case binding.Type(binding.Unsigned), binding.Type(binding.UnsignedLongLong),
		binding.Type(binding.Uint64), binding.Type(binding.SizeT):
		return true
	}
	return false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
