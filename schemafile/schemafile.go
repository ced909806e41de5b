// Package schemafile loads entity definitions and their composite field
// schemas from YAML, JSON or TOML documents.
//
//	types:
//	  money:
//	    type: json
//	    properties:
//	      - {name: amount, type: float, required: true}
//	entities:
//	  - name: product
//	    fields:
//	      - {name: price, ref: money, required: true}
//	      - {name: custom, type: json, default: {}}
package schemafile

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/reoring/jsonfield"
)

// FieldSpec is the document form of a field.
type FieldSpec struct {
	Name       string      `mapstructure:"name"`
	Storage    string      `mapstructure:"storage"`
	Type       string      `mapstructure:"type"`
	Ref        string      `mapstructure:"ref"`
	Required   bool        `mapstructure:"required"`
	Inherited  bool        `mapstructure:"inherited"`
	MaxLength  int         `mapstructure:"maxLength"`
	Default    any         `mapstructure:"default"`
	Properties []FieldSpec `mapstructure:"properties"`
}

// EntitySpec is the document form of an entity definition.
type EntitySpec struct {
	Name   string      `mapstructure:"name"`
	Fields []FieldSpec `mapstructure:"fields"`
}

// Document is a whole schema file.
type Document struct {
	Types    map[string]FieldSpec `mapstructure:"types"`
	Entities []EntitySpec         `mapstructure:"entities"`
}

// Catalog holds the compiled definitions of a document.
type Catalog struct {
	entities map[string]*jsonfield.Definition
}

// Entity returns the definition named name.
func (c *Catalog) Entity(name string) (*jsonfield.Definition, bool) {
	d, ok := c.entities[name]
	return d, ok
}

// Names returns the entity names in ascending order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.entities))
	for n := range c.entities {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Load reads path (format chosen by extension) and compiles it against reg.
func Load(path string, reg *jsonfield.Registry) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load schema %s", path)
	}
	doc, err := Parse(data, Format(path))
	if err != nil {
		return nil, errors.Wrapf(err, "load schema %s", path)
	}
	cat, err := Compile(doc, reg)
	if err != nil {
		return nil, errors.Wrapf(err, "load schema %s", path)
	}
	return cat, nil
}

// Format returns "toml" for .toml files and "yaml" otherwise (JSON is read as
// YAML).
func Format(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// Parse decodes a document in the given format.
func Parse(data []byte, format string) (*Document, error) {
	var raw map[string]any
	switch format {
	case "toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, errors.Wrap(err, "parse toml")
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, "parse yaml")
		}
	}
	var doc Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &doc,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	return &doc, nil
}

// Compile builds every entity of doc. Field refs are resolved against
// doc.Types; reference cycles are rejected.
func Compile(doc *Document, reg *jsonfield.Registry) (*Catalog, error) {
	b := &builder{types: doc.Types, resolving: map[string]bool{}}
	cat := &Catalog{entities: make(map[string]*jsonfield.Definition, len(doc.Entities))}
	for _, e := range doc.Entities {
		if e.Name == "" {
			return nil, errors.New("entity without name")
		}
		if _, dup := cat.entities[e.Name]; dup {
			return nil, errors.Errorf("entity %q declared twice", e.Name)
		}
		fields := make([]*jsonfield.FieldSchema, 0, len(e.Fields))
		for _, fs := range e.Fields {
			f, err := b.field(fs)
			if err != nil {
				return nil, errors.Wrapf(err, "entity %q", e.Name)
			}
			fields = append(fields, f)
		}
		def, err := jsonfield.NewDefinition(e.Name, reg, fields...)
		if err != nil {
			return nil, err
		}
		cat.entities[e.Name] = def
	}
	return cat, nil
}

type builder struct {
	types     map[string]FieldSpec
	resolving map[string]bool
}

func (b *builder) field(fs FieldSpec) (*jsonfield.FieldSchema, error) {
	// a type may itself refer to another type; follow the chain
	var chain []string
	defer func() {
		for _, ref := range chain {
			delete(b.resolving, ref)
		}
	}()
	for fs.Ref != "" {
		ref := fs.Ref
		base, ok := b.types[ref]
		if !ok {
			return nil, errors.Errorf("field %q: unknown type ref %q", fs.Name, ref)
		}
		if b.resolving[ref] {
			return nil, errors.Errorf("field %q: reference cycle through %q", fs.Name, ref)
		}
		b.resolving[ref] = true
		chain = append(chain, ref)
		fs = merge(base, fs)
	}
	if fs.Name == "" {
		return nil, errors.New("field without name")
	}
	if fs.Type == "" {
		return nil, errors.Errorf("field %q: missing type", fs.Name)
	}

	f := jsonfield.NewField(jsonfield.FieldType(fs.Type), fs.Name)
	if fs.Storage != "" {
		f = f.WithStorageName(fs.Storage)
	}
	if fs.Required {
		f = f.Required()
	}
	if fs.Inherited {
		f = f.Inherited()
	}
	if fs.MaxLength > 0 {
		f = f.WithMaxLength(fs.MaxLength)
	}
	if fs.Default != nil {
		f = f.WithDefault(plain(fs.Default))
	}
	if len(fs.Properties) > 0 {
		props := make([]*jsonfield.FieldSchema, 0, len(fs.Properties))
		for _, p := range fs.Properties {
			pf, err := b.field(p)
			if err != nil {
				return nil, errors.Wrapf(err, "field %q", fs.Name)
			}
			if pf.StorageName() != pf.PropertyName() {
				return nil, errors.Errorf("field %q: property %q cannot set storage %q", fs.Name, pf.PropertyName(), pf.StorageName())
			}
			props = append(props, pf)
		}
		f = f.WithProperties(props...)
	}
	return f, nil
}

// merge overlays the fields set on use over the referenced type. The result
// keeps the type's own ref, if any.
func merge(base, use FieldSpec) FieldSpec {
	out := base
	if use.Name != "" {
		out.Name = use.Name
	}
	if use.Storage != "" {
		out.Storage = use.Storage
	}
	if use.Type != "" {
		out.Type = use.Type
	}
	out.Required = out.Required || use.Required
	out.Inherited = out.Inherited || use.Inherited
	if use.MaxLength > 0 {
		out.MaxLength = use.MaxLength
	}
	if use.Default != nil {
		out.Default = use.Default
	}
	if len(use.Properties) > 0 {
		out.Properties = use.Properties
	}
	return out
}

// plain converts decoded defaults into the value shapes serializers expect:
// map[string]any, []any and int64 for integers.
func plain(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if ks, ok := k.(string); ok {
				out[ks] = plain(e)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case int:
		return int64(t)
	default:
		return v
	}
}
