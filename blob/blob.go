// Package blob implements the storage scalar of composite fields: the canonical
// JSON text a structured value is written as, and its structural inverse.
//
// Canonical text keeps Unicode characters literal, never escapes HTML
// characters, sorts object keys and keeps the zero fraction of floating point
// values (1.0 stays 1.0, it is not collapsed to 1). Decoding keeps that
// distinction: numbers written with a fraction or exponent come back as
// float64, integral literals as int64 (uint64 or the literal itself when
// they do not fit).
package blob

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
)

// ErrUnsupportedScalar is returned by Unmarshal when the stored value is
// neither a string nor a byte slice.
var ErrUnsupportedScalar = errors.New("blob: stored value is not text")

// Marshal renders v as canonical JSON text.
func Marshal(v any) (string, error) {
	nv, err := normalize(v)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := gojson.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(nv); err != nil {
		return "", fmt.Errorf("blob: encode: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Unmarshal parses stored text (string or []byte) back into plain values:
// map[string]any, []any, string, bool, int64, float64 or nil. Integers
// above the int64 range decode to uint64 or, beyond that, gojson.Number.
func Unmarshal(stored any) (any, error) {
	var data []byte
	switch s := stored.(type) {
	case string:
		data = []byte(s)
	case []byte:
		data = s
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedScalar, stored)
	}
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("blob: decode: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("blob: decode: trailing data after document")
	}
	return fromNumbers(out), nil
}

// normalize walks v and rewrites integral floats into number literals that
// carry an explicit ".0" so the encoder does not drop the fraction.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, gojson.Number:
		return v, nil
	case float64:
		return floatLiteral(t)
	case float32:
		return floatLiteral(float64(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			ne, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[k] = ne
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			ne, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ne, err := normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = ne
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			ne, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	}
	return v, nil
}

func floatLiteral(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("blob: unsupported float value %v", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return gojson.Number(strconv.FormatFloat(f, 'f', -1, 64) + ".0"), nil
	}
	return f, nil
}

func fromNumbers(v any) any {
	switch t := v.(type) {
	case gojson.Number:
		return numberValue(string(t))
	case map[string]any:
		for k, e := range t {
			t[k] = fromNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = fromNumbers(e)
		}
		return t
	default:
		return v
	}
}

// numberValue picks the narrowest exact Go value for a number literal.
// Integers beyond uint64 stay literal so they re-encode unchanged.
func numberValue(lit string) any {
	if !strings.ContainsAny(lit, ".eE") {
		if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return n
		}
		if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
			return u
		}
		return gojson.Number(lit)
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return gojson.Number(lit)
	}
	return f
}
