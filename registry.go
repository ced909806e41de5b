package jsonfield

import (
	"fmt"
	"sync"
)

// Registry maps field types to serializers and memoizes the binding of each
// schema instance. Register serializers at startup; Resolve is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byType map[FieldType]Serializer
	bound  map[*FieldSchema]Serializer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: map[FieldType]Serializer{},
		bound:  map[*FieldSchema]Serializer{},
	}
}

// Register adds s for its field type, replacing any previous serializer and
// dropping bindings made with it.
func (r *Registry) Register(s Serializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	typ := s.FieldSchemaType()
	r.byType[typ] = s
	for f := range r.bound {
		if f.typ == typ {
			delete(r.bound, f)
		}
	}
}

// Resolve returns the serializer bound to field, binding it on first use.
func (r *Registry) Resolve(field *FieldSchema) (Serializer, error) {
	r.mu.RLock()
	s, ok := r.bound[field]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.bound[field]; ok { // double-check
		return s, nil
	}
	s, ok = r.byType[field.typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q (field %q)", ErrUnknownFieldType, field.typ, field.propertyName)
	}
	r.bound[field] = s
	logger.Debug().Str("field", field.propertyName).Str("type", string(field.typ)).Msg("bound serializer")
	return s, nil
}

// Compile binds field and its whole property tree. It rejects duplicate
// nested property names, nested storage names and composite defaults that
// are neither objects nor arrays.
func (r *Registry) Compile(field *FieldSchema) error {
	if _, err := r.Resolve(field); err != nil {
		return err
	}
	if field.typ == TypeJSON && field.def != nil && !IsKind(field.def, KindObject) && !IsKind(field.def, KindArray) {
		return fmt.Errorf("jsonfield: field %q has a %T default, want an object or array", field.propertyName, field.def)
	}
	seen := make(map[string]struct{}, len(field.properties))
	for _, p := range field.properties {
		if _, dup := seen[p.propertyName]; dup {
			return fmt.Errorf("jsonfield: field %q declares property %q twice", field.propertyName, p.propertyName)
		}
		seen[p.propertyName] = struct{}{}
		if p.storageName != p.propertyName {
			// nested values are stored and decoded under their property name
			return fmt.Errorf("jsonfield: property %q of field %q cannot use storage name %q", p.propertyName, field.propertyName, p.storageName)
		}
		if err := r.Compile(p); err != nil {
			return err
		}
	}
	return nil
}
