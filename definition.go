package jsonfield

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Definition is an entity made of top-level fields. It drives the serializers
// of its fields for a whole record and aggregates failures across fields.
type Definition struct {
	name     string
	fields   []*FieldSchema
	registry *Registry
}

// NewDefinition compiles every field against registry.
func NewDefinition(name string, registry *Registry, fields ...*FieldSchema) (*Definition, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.propertyName]; dup {
			return nil, fmt.Errorf("jsonfield: definition %q declares field %q twice", name, f.propertyName)
		}
		seen[f.propertyName] = struct{}{}
		if err := registry.Compile(f); err != nil {
			return nil, fmt.Errorf("jsonfield: definition %q: %w", name, err)
		}
	}
	return &Definition{name: name, fields: append([]*FieldSchema(nil), fields...), registry: registry}, nil
}

// Name is the entity name.
func (d *Definition) Name() string { return d.name }

// Fields returns the top-level fields in declaration order.
func (d *Definition) Fields() []*FieldSchema { return append([]*FieldSchema(nil), d.fields...) }

// Field looks a top-level field up by property name.
func (d *Definition) Field(name string) (*FieldSchema, bool) {
	for _, f := range d.fields {
		if f.propertyName == name {
			return f, true
		}
	}
	return nil, false
}

// Encode converts values (keyed by property name) into a storage row keyed by
// storage name. Every failure of the record is added to wc.Exceptions and,
// when any occurred, returned as Issues. On success the row is queued on
// wc.Commands.
func (d *Definition) Encode(ctx context.Context, existence Existence, values map[string]any, wc WriteContext) (map[string]any, error) {
	if wc.Exceptions == nil {
		wc.Exceptions = &Exceptions{}
	}
	if wc.Definition == "" {
		wc.Definition = d.name
	}
	rec := &recorder{next: wc.Exceptions}
	wc.Exceptions = rec

	unknown := make([]string, 0)
	for k := range values {
		if _, ok := d.Field(k); !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		rec.Add(&UnexpectedFieldError{Path: JoinPath(wc.Path, k), Key: k})
	}

	row := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		v, ok := values[f.propertyName]
		pair := Pair{Key: f.propertyName, Value: v, Exists: ok}
		if existence.Exists && !ok {
			// updates leave untouched columns alone
			continue
		}
		ser, err := d.registry.Resolve(f)
		if err != nil {
			return nil, err
		}
		cols, err := ser.Encode(ctx, f, existence, pair, wc)
		if err != nil {
			if !IsValidationError(err) {
				return nil, err
			}
			rec.Add(err)
			continue
		}
		for _, c := range cols {
			row[c.Key] = c.Value
		}
	}

	if len(rec.errs) > 0 {
		logger.Debug().Str("definition", d.name).Int("failures", len(rec.errs)).Msg("write rejected")
		var iss Issues
		for _, err := range rec.errs {
			more, _ := AsIssues(err)
			iss = append(iss, more...)
		}
		return nil, iss
	}

	if wc.Commands != nil {
		wc.Commands.Add(WriteCommand{Definition: d.name, Existing: existence.Exists, Payload: row})
	}
	logger.Debug().Str("definition", d.name).Int("columns", len(row)).Msg("write accepted")
	return row, nil
}

// recorder keeps the failures of one record and forwards them to the
// caller's collector.
type recorder struct {
	mu   sync.Mutex
	next ExceptionCollector
	errs []error
}

func (r *recorder) Add(errs ...error) {
	r.mu.Lock()
	for _, err := range errs {
		if err != nil {
			r.errs = append(r.errs, err)
		}
	}
	r.mu.Unlock()
	r.next.Add(errs...)
}

// Decode converts a storage row (keyed by storage name) into values keyed by
// property name. Columns missing from the row decode to the field default.
func (d *Definition) Decode(ctx context.Context, row map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		ser, err := d.registry.Resolve(f)
		if err != nil {
			return nil, err
		}
		v, err := ser.Decode(ctx, f, row[f.storageName])
		if err != nil {
			return nil, fmt.Errorf("definition %q: %w", d.name, err)
		}
		out[f.propertyName] = v
	}
	return out, nil
}
