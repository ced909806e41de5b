package fields

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/reoring/jsonfield"
)

// String returns the serializer of TypeString fields. Required strings must
// not be blank; WithMaxLength limits their length.
func String(opts ...jsonfield.SerializerOption) jsonfield.Serializer {
	return &leaf{
		typ: jsonfield.TypeString,
		cfg: jsonfield.NewSerializerConfig(opts...),
		constraints: func(f *jsonfield.FieldSchema) jsonfield.ConstraintSet {
			b := baseConstraints(f, jsonfield.KindString)
			if f.IsRequired() {
				b.NotBlank()
			}
			if n := f.MaxLength(); n > 0 {
				b.MaxLength(n)
			}
			return b.Build()
		},
		encode: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", v)
			}
			return s, nil
		},
		decode: func(v any) (any, error) {
			switch t := v.(type) {
			case string:
				return t, nil
			case []byte:
				return string(t), nil
			}
			return fmt.Sprint(v), nil
		},
	}
}

// Int returns the serializer of TypeInt fields. Values are stored as int64.
func Int(opts ...jsonfield.SerializerOption) jsonfield.Serializer {
	return &leaf{
		typ: jsonfield.TypeInt,
		cfg: jsonfield.NewSerializerConfig(opts...),
		constraints: func(f *jsonfield.FieldSchema) jsonfield.ConstraintSet {
			return baseConstraints(f, jsonfield.KindInt).Build()
		},
		encode: toInt64,
		decode: toInt64,
	}
}

// Float returns the serializer of TypeFloat fields. Values are stored as
// float64, so integral values keep their zero fraction in storage.
func Float(opts ...jsonfield.SerializerOption) jsonfield.Serializer {
	return &leaf{
		typ: jsonfield.TypeFloat,
		cfg: jsonfield.NewSerializerConfig(opts...),
		constraints: func(f *jsonfield.FieldSchema) jsonfield.ConstraintSet {
			return baseConstraints(f, jsonfield.KindFloat).Build()
		},
		encode: toFloat64,
		decode: toFloat64,
	}
}

// Bool returns the serializer of TypeBool fields.
func Bool(opts ...jsonfield.SerializerOption) jsonfield.Serializer {
	return &leaf{
		typ: jsonfield.TypeBool,
		cfg: jsonfield.NewSerializerConfig(opts...),
		constraints: func(f *jsonfield.FieldSchema) jsonfield.ConstraintSet {
			return baseConstraints(f, jsonfield.KindBool).Build()
		},
		encode: toBool,
		decode: toBool,
	}
}

func toInt64(v any) (any, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case json.Number:
		return t.Int64()
	case string:
		return strconv.ParseInt(t, 10, 64)
	case float64:
		if t != math.Trunc(t) || t >= 0x1p63 || t < -0x1p63 {
			return nil, fmt.Errorf("%v is not an integer", t)
		}
		return int64(t), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	}
	return nil, fmt.Errorf("expected integer, got %T", v)
}

func toFloat64(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(t, 64)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("expected number, got %T", v)
}

func toBool(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	case int64:
		return t != 0, nil
	}
	return nil, fmt.Errorf("expected bool, got %T", v)
}
