package jsonfield

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/reoring/jsonfield/blob"
)

// Canonical text of decoded nested timestamps.
const (
	StorageDateFormat     = "2006-01-02"
	StorageDateTimeFormat = "2006-01-02 15:04:05.000"
)

// CompositeSerializer handles TypeJSON fields: one structured value stored as
// a single serialized document, whose declared nested fields are validated and
// converted by their own serializers.
type CompositeSerializer struct {
	registry *Registry
	cfg      SerializerConfig
}

var _ Serializer = (*CompositeSerializer)(nil)

// NewCompositeSerializer returns a serializer resolving nested fields through
// registry. It does not register itself.
func NewCompositeSerializer(registry *Registry, opts ...SerializerOption) *CompositeSerializer {
	return &CompositeSerializer{registry: registry, cfg: NewSerializerConfig(opts...)}
}

// FieldSchemaType reports TypeJSON.
func (s *CompositeSerializer) FieldSchemaType() FieldType { return TypeJSON }

func (s *CompositeSerializer) constraints() ConstraintSet {
	return NewConstraintBuilder().NotNull().IsArray().Build()
}

func (s *CompositeSerializer) shape() ConstraintSet {
	return NewConstraintBuilder().IsArray().Build()
}

func (s *CompositeSerializer) checkField(field *FieldSchema) error {
	if field == nil || field.typ != TypeJSON {
		got := FieldType("")
		name := ""
		if field != nil {
			got, name = field.typ, field.propertyName
		}
		return &SerializerFieldError{Serializer: TypeJSON, Field: name, Got: got}
	}
	return nil
}

// Encode validates pair, re-encodes the declared nested fields and returns one
// column holding the canonical text (or nil).
func (s *CompositeSerializer) Encode(ctx context.Context, field *FieldSchema, existence Existence, pair Pair, wc WriteContext) ([]Column, error) {
	if err := s.checkField(field); err != nil {
		return nil, err
	}

	value := pair.Value
	if s.cfg.Policy.RequiresValidation(field, existence, pair) {
		if err := s.cfg.Validator.Validate(s.constraints(), pair.Key, value, wc.Path); err != nil {
			return nil, err
		}
	} else if value == nil {
		value = field.def
	}

	if value != nil && len(field.properties) > 0 {
		nested, err := s.encodeNested(ctx, field, value, wc)
		if err != nil {
			return nil, err
		}
		value = nested
	}

	var out any
	if value != nil {
		text, err := blob.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", JoinPath(wc.Path, field.propertyName), err)
		}
		out = text
	}
	return []Column{{Key: field.storageName, Value: out}}, nil
}

// encodeNested validates value against the property mapping and re-encodes
// each declared nested field through its serializer. Nested failures are
// collected and returned as one flat *JSONFieldError.
func (s *CompositeSerializer) encodeNested(ctx context.Context, field *FieldSchema, value any, wc WriteContext) (map[string]any, error) {
	// defaults skip top-level validation, so check the shape here as well
	if err := s.cfg.Validator.Validate(s.shape(), field.propertyName, value, wc.Path); err != nil {
		return nil, err
	}
	data := entriesOf(value)
	delete(data, DiscriminatorKey)

	stack := NewValueStack(data)
	fieldPath := JoinPath(wc.Path, field.propertyName)

	var failures failureList

	declared := make(map[string]struct{}, len(field.properties))
	for _, p := range field.properties {
		declared[p.propertyName] = struct{}{}
	}
	for _, k := range stack.Keys() {
		if _, ok := declared[k]; ok {
			continue
		}
		_, _ = stack.Pop(k)
		unexpected := &UnexpectedFieldError{Path: JoinPath(fieldPath, k), Key: k}
		if wc.Exceptions != nil {
			wc.Exceptions.Add(unexpected)
		} else {
			failures = append(failures, unexpected)
		}
	}

	nestedWC := wc.WithPath(fieldPath)
	nestedExistence := NewExistence()

	for _, nested := range field.properties {
		kv, err := stack.Pop(nested.propertyName)
		if err != nil {
			if !nested.required {
				continue
			}
			kv = Pair{Key: nested.propertyName, Value: nil, Exists: false}
		}

		if nested.IsOpaque() && kv.Value != nil {
			stack.Update(kv.Key, kv.Value)
			continue
		}

		ser, err := s.registry.Resolve(nested)
		if err != nil {
			return nil, err
		}
		cols, err := ser.Encode(ctx, nested, nestedExistence, kv, nestedWC)
		if err != nil {
			if err := failures.merge(err); err != nil {
				return nil, err
			}
			continue
		}
		for _, c := range cols {
			v := c.Value
			if nested.typ == TypeJSON && v != nil {
				if v, err = blob.Unmarshal(v); err != nil {
					return nil, fmt.Errorf("re-read nested field %s: %w", JoinPath(fieldPath, c.Key), err)
				}
			}
			stack.Update(c.Key, v)
		}
	}

	if len(failures) > 0 {
		logger.Debug().Str("path", fieldPath).Int("failures", len(failures)).Msg("nested validation failed")
		return nil, &JSONFieldError{Path: fieldPath, Failures: failures}
	}
	return stack.Flatten(), nil
}

// Decode parses the stored document and decodes every declared nested field
// present in it. Undeclared keys pass through unchanged.
func (s *CompositeSerializer) Decode(ctx context.Context, field *FieldSchema, value any) (any, error) {
	if err := s.checkField(field); err != nil {
		return nil, err
	}
	if value == nil {
		return field.def, nil
	}
	if s.cfg.StrictDecode {
		if err := verifyStored(value); err != nil {
			return nil, fmt.Errorf("decode field %q: %w", field.propertyName, err)
		}
	}
	raw, err := blob.Unmarshal(value)
	if err != nil {
		return nil, fmt.Errorf("decode field %q: %w", field.propertyName, err)
	}
	if len(field.properties) == 0 {
		return raw, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return raw, nil
	}

	decoded := make(map[string]any, len(obj))
	for k, v := range obj {
		decoded[k] = v
	}
	for _, nested := range field.properties {
		rv, ok := obj[nested.propertyName]
		if !ok || rv == nil {
			continue
		}
		if nested.typ == TypeJSON {
			if rv, err = blob.Marshal(rv); err != nil {
				return nil, fmt.Errorf("decode field %q: %w", nested.propertyName, err)
			}
		}
		ser, err := s.registry.Resolve(nested)
		if err != nil {
			return nil, err
		}
		dv, err := ser.Decode(ctx, nested, rv)
		if err != nil {
			return nil, fmt.Errorf("decode field %q: %w", nested.propertyName, err)
		}
		if t, ok := dv.(time.Time); ok {
			dv = FormatTimestamp(nested, t)
		}
		decoded[nested.propertyName] = dv
	}
	return decoded, nil
}

// FormatTimestamp renders t in the canonical storage text of field's type.
func FormatTimestamp(field *FieldSchema, t time.Time) string {
	if field.typ == TypeDate {
		return t.Format(StorageDateFormat)
	}
	return t.UTC().Format(StorageDateTimeFormat)
}

func verifyStored(value any) error {
	switch v := value.(type) {
	case string:
		return blob.Verify([]byte(v))
	case []byte:
		return blob.Verify(v)
	}
	return nil
}

// entriesOf copies a composite value into a plain map. Arrays are keyed by
// index so that none of their entries matches a declared property.
func entriesOf(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[k] = e
		}
		return out
	}
	out := map[string]any{}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = iter.Value().Interface()
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			out[strconv.Itoa(i)] = rv.Index(i).Interface()
		}
	}
	return out
}
