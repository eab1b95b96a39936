package addrspace

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

// dataTypes maps builtin data type names to the Go type that carries them.
// A nil type accepts any value.
//
//nolint:gochecknoglobals // lookup table
var dataTypes = map[string]reflect.Type{
	"":             nil,
	"BaseDataType": nil,
	"Boolean":      reflect.TypeOf(false),
	"SByte":        reflect.TypeOf(int8(0)),
	"Byte":         reflect.TypeOf(uint8(0)),
	"Int16":        reflect.TypeOf(int16(0)),
	"UInt16":       reflect.TypeOf(uint16(0)),
	"Int32":        reflect.TypeOf(int32(0)),
	"UInt32":       reflect.TypeOf(uint32(0)),
	"Int64":        reflect.TypeOf(int64(0)),
	"UInt64":       reflect.TypeOf(uint64(0)),
	"Float":        reflect.TypeOf(float32(0)),
	"Double":       reflect.TypeOf(float64(0)),
	"String":       reflect.TypeOf(""),
	"DateTime":     reflect.TypeOf(time.Time{}),
	"ByteString":   reflect.TypeOf([]byte(nil)),
}

// valueMatches accepts a scalar of the data type or a slice of it.
func valueMatches(dataType string, value interface{}) bool {
	want, ok := dataTypes[dataType]
	if !ok {
		return false
	}

	if want == nil {
		return true
	}

	if value == nil {
		return false
	}

	got := reflect.TypeOf(value)
	if got == want {
		return true
	}

	return got.Kind() == reflect.Slice && got.Elem() == want
}

// coerce converts a decoded model value (YAML yields int, float64, string,
// bool and []interface{}) into the Go type of dataType.
func coerce(dataType string, raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}

	if list, ok := raw.([]interface{}); ok {
		return coerceList(dataType, list)
	}

	want, ok := dataTypes[dataType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownDataType, dataType)
	}

	if want == nil {
		return raw, nil
	}

	switch want.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := asInt(raw)
		if err != nil {
			return nil, err
		}

		v := reflect.New(want).Elem()
		if v.OverflowInt(n) {
			return nil, fmt.Errorf("%w: %d overflows %s", errBadValue, n, dataType)
		}

		v.SetInt(n)

		return v.Interface(), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := asInt(raw)
		if err != nil {
			return nil, err
		}

		v := reflect.New(want).Elem()
		if n < 0 || v.OverflowUint(uint64(n)) {
			return nil, fmt.Errorf("%w: %d overflows %s", errBadValue, n, dataType)
		}

		v.SetUint(uint64(n))

		return v.Interface(), nil
	case reflect.Float32, reflect.Float64:
		f, err := asFloat(raw)
		if err != nil {
			return nil, err
		}

		if want.Kind() == reflect.Float32 {
			if math.Abs(f) > math.MaxFloat32 {
				return nil, fmt.Errorf("%w: %v overflows %s", errBadValue, f, dataType)
			}

			return float32(f), nil
		}

		return f, nil
	case reflect.Slice:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", errBadValue, raw, dataType)
		}

		return []byte(s), nil
	default:
		if dataType == "DateTime" {
			return asTime(raw)
		}

		if reflect.TypeOf(raw) != want {
			return nil, fmt.Errorf("%w: %T for %s", errBadValue, raw, dataType)
		}

		return raw, nil
	}
}

func coerceList(dataType string, list []interface{}) (interface{}, error) {
	want := dataTypes[dataType]
	if want == nil {
		return list, nil
	}

	out := reflect.MakeSlice(reflect.SliceOf(want), 0, len(list))

	for _, item := range list {
		v, err := coerce(dataType, item)
		if err != nil {
			return nil, err
		}

		out = reflect.Append(out, reflect.ValueOf(v))
	}

	return out.Interface(), nil
}

func asInt(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d", errBadValue, v)
		}

		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %v is not an integer", errBadValue, v)
		}

		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", errBadValue, raw)
	}
}

func asFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", errBadValue, raw)
	}
}

func asTime(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", errBadValue, err)
		}

		return t, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %T is not a time", errBadValue, raw)
	}
}
