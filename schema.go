package jsonfield

// FieldType identifies the serializer kind a FieldSchema is bound to.
type FieldType string

const (
	TypeJSON     FieldType = "json" // Composite field stored as one serialized document.
	TypeString   FieldType = "string"
	TypeInt      FieldType = "int"
	TypeFloat    FieldType = "float"
	TypeBool     FieldType = "bool"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
)

// DiscriminatorKey is reserved for polymorphic type resolution. It is stripped
// from composite input before the property mapping is applied.
const DiscriminatorKey = "_class"

// FieldSchema describes one field. It is immutable: modifiers return a copy,
// so a schema can be shared by concurrent callers.
type FieldSchema struct {
	typ          FieldType
	storageName  string
	propertyName string
	def          any
	properties   []*FieldSchema
	required     bool
	inherited    bool
	maxLength    int
}

// NewField returns a field of the given type whose storage and property names
// are both name.
func NewField(typ FieldType, name string) *FieldSchema {
	return &FieldSchema{typ: typ, storageName: name, propertyName: name}
}

// JSON returns a composite field. Without properties the field is untyped and
// its value passes through unchanged.
func JSON(name string, properties ...*FieldSchema) *FieldSchema {
	f := NewField(TypeJSON, name)
	if len(properties) > 0 {
		f.properties = append([]*FieldSchema(nil), properties...)
	}
	return f
}

// Leaf field constructors.
func String(name string) *FieldSchema   { return NewField(TypeString, name) }
func Int(name string) *FieldSchema      { return NewField(TypeInt, name) }
func Float(name string) *FieldSchema    { return NewField(TypeFloat, name) }
func Bool(name string) *FieldSchema     { return NewField(TypeBool, name) }
func Date(name string) *FieldSchema     { return NewField(TypeDate, name) }
func DateTime(name string) *FieldSchema { return NewField(TypeDateTime, name) }

func (f *FieldSchema) clone() *FieldSchema {
	c := *f
	c.properties = append([]*FieldSchema(nil), f.properties...)
	return &c
}

// Required marks the field as required.
func (f *FieldSchema) Required() *FieldSchema {
	c := f.clone()
	c.required = true
	return c
}

// Inherited marks the field as inheritable from a parent entity.
func (f *FieldSchema) Inherited() *FieldSchema {
	c := f.clone()
	c.inherited = true
	return c
}

// WithDefault sets the value used when the input is absent or null. The value
// is shared and must not be mutated afterwards.
func (f *FieldSchema) WithDefault(v any) *FieldSchema {
	c := f.clone()
	c.def = v
	return c
}

// WithStorageName sets the key the encoded value is written under.
func (f *FieldSchema) WithStorageName(name string) *FieldSchema {
	c := f.clone()
	c.storageName = name
	return c
}

// WithMaxLength limits string length (in runes). Zero disables the limit.
func (f *FieldSchema) WithMaxLength(n int) *FieldSchema {
	c := f.clone()
	c.maxLength = n
	return c
}

// WithProperties replaces the property mapping.
func (f *FieldSchema) WithProperties(properties ...*FieldSchema) *FieldSchema {
	c := f.clone()
	c.properties = append([]*FieldSchema(nil), properties...)
	return c
}

// Accessors of the immutable schema.
func (f *FieldSchema) Type() FieldType      { return f.typ }
func (f *FieldSchema) StorageName() string  { return f.storageName }
func (f *FieldSchema) PropertyName() string { return f.propertyName }
func (f *FieldSchema) Default() any         { return f.def }
func (f *FieldSchema) IsRequired() bool     { return f.required }
func (f *FieldSchema) IsInherited() bool    { return f.inherited }
func (f *FieldSchema) MaxLength() int       { return f.maxLength }

// Properties returns a copy of the property mapping in declaration order.
func (f *FieldSchema) Properties() []*FieldSchema {
	return append([]*FieldSchema(nil), f.properties...)
}

// HasProperties reports whether a property mapping is declared.
func (f *FieldSchema) HasProperties() bool { return len(f.properties) > 0 }

// IsOpaque reports whether f is a composite field without property mapping.
func (f *FieldSchema) IsOpaque() bool { return f.typ == TypeJSON && len(f.properties) == 0 }

// PropertyNames returns the declared nested property names in order.
func (f *FieldSchema) PropertyNames() []string {
	out := make([]string, len(f.properties))
	for i, p := range f.properties {
		out[i] = p.propertyName
	}
	return out
}
