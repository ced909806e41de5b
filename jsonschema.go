package jsonfield

import js "github.com/reoring/jsonfield/jsonschema"

// JSONSchema projects a field into a JSON Schema document describing the value
// callers send for it.
func JSONSchema(field *FieldSchema) *js.Schema {
	s := &js.Schema{Default: field.def}
	switch field.typ {
	case TypeJSON:
		if len(field.properties) == 0 {
			s.AnyOf = []*js.Schema{{Type: "object"}, {Type: "array"}}
			return s
		}
		s.Type = "object"
		s.AdditionalProperties = false
		s.Properties = make(map[string]*js.Schema, len(field.properties))
		for _, p := range field.properties {
			ps := JSONSchema(p)
			if p.IsOpaque() {
				// nested untyped values may be of any shape
				ps = &js.Schema{Default: p.def}
			}
			s.Properties[p.propertyName] = ps
			if p.required {
				s.Required = append(s.Required, p.propertyName)
			}
		}
	case TypeString:
		s.Type = "string"
		if field.maxLength > 0 {
			n := field.maxLength
			s.MaxLength = &n
		}
	case TypeInt:
		s.Type = "integer"
	case TypeFloat:
		s.Type = "number"
	case TypeBool:
		s.Type = "boolean"
	case TypeDate:
		s.Type, s.Format = "string", "date"
	case TypeDateTime:
		s.Type, s.Format = "string", "date-time"
	}
	return s
}

// JSONSchema projects the definition into an object schema keyed by property
// name.
func (d *Definition) JSONSchema() *js.Schema {
	s := &js.Schema{
		Type:                 "object",
		Properties:           make(map[string]*js.Schema, len(d.fields)),
		AdditionalProperties: false,
	}
	for _, f := range d.fields {
		s.Properties[f.propertyName] = JSONSchema(f)
		if f.required {
			s.Required = append(s.Required, f.propertyName)
		}
	}
	return s
}
