package jsonfield

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/reoring/jsonfield/i18n"
)

// Kind names a value shape accepted by the Type constraint.
type Kind string

const (
	KindObject Kind = "object"
	KindArray  Kind = "array"
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindTime   Kind = "time"
)

// Constraint checks one property of a value and returns nil when satisfied.
type Constraint interface {
	Name() string
	Check(v any) *Issue
}

// ConstraintSet is an ordered list of constraints; all are evaluated.
type ConstraintSet []Constraint

// ConstraintBuilder assembles a ConstraintSet.
type ConstraintBuilder struct {
	set ConstraintSet
}

// NewConstraintBuilder starts an empty set.
func NewConstraintBuilder() *ConstraintBuilder { return &ConstraintBuilder{} }

// NotNull rejects nil.
func (b *ConstraintBuilder) NotNull() *ConstraintBuilder {
	b.set = append(b.set, notNull{})
	return b
}

// IsArray accepts objects and arrays, the two shapes a composite value may take.
func (b *ConstraintBuilder) IsArray() *ConstraintBuilder {
	return b.Type(KindObject, KindArray)
}

// Type accepts values of any of the given kinds. nil always passes.
func (b *ConstraintBuilder) Type(kinds ...Kind) *ConstraintBuilder {
	b.set = append(b.set, typeOf{kinds: kinds})
	return b
}

// NotBlank rejects empty or whitespace-only strings.
func (b *ConstraintBuilder) NotBlank() *ConstraintBuilder {
	b.set = append(b.set, notBlank{})
	return b
}

// MaxLength limits string length in runes.
func (b *ConstraintBuilder) MaxLength(n int) *ConstraintBuilder {
	b.set = append(b.set, maxLength{max: n})
	return b
}

// Build returns a copy of the assembled set.
func (b *ConstraintBuilder) Build() ConstraintSet {
	return append(ConstraintSet(nil), b.set...)
}

type notNull struct{}

func (notNull) Name() string { return "not_null" }

func (notNull) Check(v any) *Issue {
	if v != nil {
		return nil
	}
	return &Issue{Code: CodeRequired, Message: i18n.T(CodeRequired, nil)}
}

type typeOf struct{ kinds []Kind }

func (typeOf) Name() string { return "type" }

func (c typeOf) Check(v any) *Issue {
	if v == nil {
		return nil
	}
	for _, k := range c.kinds {
		if IsKind(v, k) {
			return nil
		}
	}
	names := make([]string, len(c.kinds))
	for i, k := range c.kinds {
		names[i] = string(k)
	}
	expected := strings.Join(names, "|")
	return &Issue{
		Code:    CodeInvalidType,
		Message: i18n.T(CodeInvalidType, map[string]string{"expected": expected}),
		Params:  map[string]any{"expected": expected, "got": fmt.Sprintf("%T", v)},
	}
}

type notBlank struct{}

func (notBlank) Name() string { return "not_blank" }

// Check leaves nil to NotNull.
func (notBlank) Check(v any) *Issue {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) != "" {
		return nil
	}
	return &Issue{Code: CodeBlank, Message: i18n.T(CodeBlank, nil)}
}

type maxLength struct{ max int }

func (maxLength) Name() string { return "max_length" }

func (c maxLength) Check(v any) *Issue {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if n := utf8.RuneCountInString(s); n > c.max {
		return &Issue{
			Code:    CodeTooLong,
			Message: i18n.T(CodeTooLong, nil),
			Params:  map[string]any{"max": c.max, "got": n},
		}
	}
	return nil
}

// IsKind reports whether v has the given shape. Objects are maps with string
// keys, arrays are slices other than []byte; ints include integral
// json.Numbers; floats include every numeric value.
func IsKind(v any, k Kind) bool {
	switch k {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindTime:
		_, ok := v.(time.Time)
		return ok
	}
	if n, ok := v.(json.Number); ok {
		switch k {
		case KindInt:
			_, err := n.Int64()
			return err == nil
		case KindFloat:
			_, err := n.Float64()
			return err == nil
		}
		return false
	}
	rv := reflect.ValueOf(v)
	switch k {
	case KindObject:
		return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
	case KindArray:
		return (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8
	case KindInt:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
	case KindFloat:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
	}
	return false
}

// Validator checks a value against a constraint set. It returns a *FieldError
// listing every violation, or nil.
type Validator interface {
	Validate(constraints ConstraintSet, key string, value any, path string) error
}

// ConstraintValidator is the default Validator.
type ConstraintValidator struct{}

// Validate runs every constraint and reports all violations as one
// *FieldError anchored at path/key.
func (ConstraintValidator) Validate(constraints ConstraintSet, key string, value any, path string) error {
	var violations Issues
	for _, c := range constraints {
		if is := c.Check(value); is != nil {
			if is.Params == nil {
				is.Params = map[string]any{}
			}
			is.Params["constraint"] = c.Name()
			violations = append(violations, *is)
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return &FieldError{Path: JoinPath(path, key), Key: key, Violations: violations}
}
