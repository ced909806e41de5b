// Package fields provides the scalar serializers used as nested fields of
// composite values, and NewRegistry which wires them together with the
// composite serializer.
package fields

import (
	"context"

	"github.com/reoring/jsonfield"
)

// leaf is the shared encode/decode flow of scalar serializers: validate when
// the policy asks for it, substitute the default for absent values, convert.
type leaf struct {
	typ         jsonfield.FieldType
	cfg         jsonfield.SerializerConfig
	constraints func(field *jsonfield.FieldSchema) jsonfield.ConstraintSet
	encode      func(v any) (any, error)
	decode      func(v any) (any, error)
}

// FieldSchemaType reports the field type the leaf serves.
func (l *leaf) FieldSchemaType() jsonfield.FieldType { return l.typ }

func (l *leaf) check(field *jsonfield.FieldSchema) error {
	if field == nil || field.Type() != l.typ {
		e := &jsonfield.SerializerFieldError{Serializer: l.typ}
		if field != nil {
			e.Field, e.Got = field.PropertyName(), field.Type()
		}
		return e
	}
	return nil
}

// Encode validates pair and converts it into its single storage column.
func (l *leaf) Encode(ctx context.Context, field *jsonfield.FieldSchema, existence jsonfield.Existence, pair jsonfield.Pair, wc jsonfield.WriteContext) ([]jsonfield.Column, error) {
	if err := l.check(field); err != nil {
		return nil, err
	}
	value := pair.Value
	if l.cfg.Policy.RequiresValidation(field, existence, pair) {
		if err := l.cfg.Validator.Validate(l.constraints(field), pair.Key, value, wc.Path); err != nil {
			return nil, err
		}
	} else if value == nil {
		value = field.Default()
	}
	if value != nil {
		enc, err := l.encode(value)
		if err != nil {
			return nil, &jsonfield.FieldError{
				Path: jsonfield.JoinPath(wc.Path, pair.Key),
				Key:  pair.Key,
				Violations: jsonfield.Issues{{
					Code:    jsonfield.CodeInvalidFormat,
					Message: err.Error(),
					Cause:   err,
				}},
			}
		}
		value = enc
	}
	return []jsonfield.Column{{Key: field.StorageName(), Value: value}}, nil
}

// Decode converts a stored scalar back, or returns the default for nil.
func (l *leaf) Decode(ctx context.Context, field *jsonfield.FieldSchema, value any) (any, error) {
	if err := l.check(field); err != nil {
		return nil, err
	}
	if value == nil {
		return field.Default(), nil
	}
	return l.decode(value)
}

// baseConstraints returns the constraints shared by every scalar: a required
// value must not be null and must be of one of kinds.
func baseConstraints(field *jsonfield.FieldSchema, kinds ...jsonfield.Kind) *jsonfield.ConstraintBuilder {
	b := jsonfield.NewConstraintBuilder()
	if field.IsRequired() {
		b.NotNull()
	}
	return b.Type(kinds...)
}

// NewRegistry returns a registry holding the composite serializer and every
// scalar serializer of this package, all sharing opts.
func NewRegistry(opts ...jsonfield.SerializerOption) *jsonfield.Registry {
	reg := jsonfield.NewRegistry()
	reg.Register(jsonfield.NewCompositeSerializer(reg, opts...))
	for _, s := range []jsonfield.Serializer{
		String(opts...),
		Int(opts...),
		Float(opts...),
		Bool(opts...),
		Date(opts...),
		DateTime(opts...),
	} {
		reg.Register(s)
	}
	return reg
}
