package fields

import (
	"fmt"
	"time"

	"github.com/reoring/jsonfield"
)

// Date returns the serializer of TypeDate fields. Values are stored as
// "2006-01-02" text and decoded to time.Time.
func Date(opts ...jsonfield.SerializerOption) jsonfield.Serializer {
	return timeLeaf(jsonfield.TypeDate, jsonfield.StorageDateFormat, opts)
}

// DateTime returns the serializer of TypeDateTime fields. Values are stored
// as UTC "2006-01-02 15:04:05.000" text and decoded to time.Time.
func DateTime(opts ...jsonfield.SerializerOption) jsonfield.Serializer {
	return timeLeaf(jsonfield.TypeDateTime, jsonfield.StorageDateTimeFormat, opts)
}

func timeLeaf(typ jsonfield.FieldType, layout string, opts []jsonfield.SerializerOption) jsonfield.Serializer {
	return &leaf{
		typ: typ,
		cfg: jsonfield.NewSerializerConfig(opts...),
		constraints: func(f *jsonfield.FieldSchema) jsonfield.ConstraintSet {
			return baseConstraints(f, jsonfield.KindTime, jsonfield.KindString).Build()
		},
		encode: func(v any) (any, error) {
			t, err := parseTime(v)
			if err != nil {
				return nil, err
			}
			if typ == jsonfield.TypeDate {
				return t.Format(layout), nil
			}
			return t.UTC().Format(layout), nil
		},
		decode: func(v any) (any, error) { return parseTime(v) },
	}
}

// accepted input layouts, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	jsonfield.StorageDateTimeFormat,
	"2006-01-02 15:04:05",
	jsonfield.StorageDateFormat,
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t != nil {
			return *t, nil
		}
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid timestamp %q", t)
	}
	return time.Time{}, fmt.Errorf("expected timestamp, got %T", v)
}
