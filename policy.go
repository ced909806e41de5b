package jsonfield

// ValidationPolicy decides whether a field value must go through full
// constraint validation. It is shared by every serializer kind.
type ValidationPolicy interface {
	RequiresValidation(field *FieldSchema, existence Existence, pair Pair) bool
}

// DefaultPolicy validates supplied values and required fields, except for
// fields an update does not touch and inherited fields of child entities.
type DefaultPolicy struct{}

// RequiresValidation implements ValidationPolicy.
func (DefaultPolicy) RequiresValidation(field *FieldSchema, existence Existence, pair Pair) bool {
	if pair.Value != nil {
		return true
	}
	if existence.Exists && !pair.Exists {
		return false
	}
	if existence.Child && field.IsInherited() {
		return false
	}
	return field.IsRequired()
}

// SerializerConfig holds the collaborators every serializer consults.
type SerializerConfig struct {
	Policy       ValidationPolicy
	Validator    Validator
	StrictDecode bool
}

// SerializerOption configures a SerializerConfig.
type SerializerOption func(*SerializerConfig)

// WithPolicy replaces the DefaultPolicy.
func WithPolicy(p ValidationPolicy) SerializerOption {
	return func(c *SerializerConfig) { c.Policy = p }
}

// WithValidator replaces the ConstraintValidator.
func WithValidator(v Validator) SerializerOption {
	return func(c *SerializerConfig) { c.Validator = v }
}

// WithStrictDecode makes composite decoding reject stored documents that are
// not structurally valid (for example with duplicate keys).
func WithStrictDecode() SerializerOption {
	return func(c *SerializerConfig) { c.StrictDecode = true }
}

// NewSerializerConfig applies opts over the defaults.
func NewSerializerConfig(opts ...SerializerOption) SerializerConfig {
	c := SerializerConfig{Policy: DefaultPolicy{}, Validator: ConstraintValidator{}}
	for _, o := range opts {
		if o != nil {
			o(&c)
		}
	}
	return c
}
