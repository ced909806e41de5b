package jsonfield_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/reoring/jsonfield"
	"github.com/reoring/jsonfield/fields"
)

func addressSchema() *jsonfield.FieldSchema {
	return jsonfield.JSON("address",
		jsonfield.String("street").Required(),
		jsonfield.JSON("extra"),
	)
}

func encode(t *testing.T, reg *jsonfield.Registry, f *jsonfield.FieldSchema, v any, wc jsonfield.WriteContext) ([]jsonfield.Column, error) {
	t.Helper()
	ser, err := reg.Resolve(f)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return ser.Encode(context.Background(), f, jsonfield.NewExistence(), jsonfield.Pair{Key: f.PropertyName(), Value: v, Exists: true}, wc)
}

func decode(t *testing.T, reg *jsonfield.Registry, f *jsonfield.FieldSchema, stored any) (any, error) {
	t.Helper()
	ser, err := reg.Resolve(f)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return ser.Decode(context.Background(), f, stored)
}

func exceptionsOf(t *testing.T, wc jsonfield.WriteContext) []error {
	t.Helper()
	ex, ok := wc.Exceptions.(*jsonfield.Exceptions)
	if !ok {
		t.Fatalf("unexpected collector %T", wc.Exceptions)
	}
	return ex.Errors()
}

func TestComposite_UnexpectedKeyAndPassthrough(t *testing.T) {
	reg := fields.NewRegistry()
	wc := jsonfield.NewWriteContext("customer")

	cols, err := encode(t, reg, addressSchema(), map[string]any{"street": "Main", "extra": "raw", "ghost": 1}, wc)
	if err != nil {
		t.Fatalf("encode err: %v", err)
	}
	if len(cols) != 1 || cols[0].Key != "address" {
		t.Fatalf("unexpected columns: %#v", cols)
	}
	if cols[0].Value != `{"extra":"raw","street":"Main"}` {
		t.Fatalf("unexpected storage text: %v", cols[0].Value)
	}

	errs := exceptionsOf(t, wc)
	if len(errs) != 1 {
		t.Fatalf("expected one collected failure, got %v", errs)
	}
	var uf *jsonfield.UnexpectedFieldError
	if !errors.As(errs[0], &uf) || uf.Key != "ghost" || uf.Path != "/address/ghost" {
		t.Fatalf("expected unexpected field ghost, got %#v", errs[0])
	}
}

func TestComposite_MissingRequiredNestedField(t *testing.T) {
	reg := fields.NewRegistry()
	wc := jsonfield.NewWriteContext("customer")

	cols, err := encode(t, reg, addressSchema(), map[string]any{"extra": "raw"}, wc)
	if cols != nil {
		t.Fatalf("no output expected on failure, got %#v", cols)
	}
	var agg *jsonfield.JSONFieldError
	if !errors.As(err, &agg) {
		t.Fatalf("expected aggregate failure, got %v", err)
	}
	if agg.Path != "/address" || len(agg.Failures) != 1 {
		t.Fatalf("unexpected aggregate: %#v", agg)
	}
	var fe *jsonfield.FieldError
	if !errors.As(agg.Failures[0], &fe) || fe.Path != "/address/street" {
		t.Fatalf("expected field failure at /address/street, got %#v", agg.Failures[0])
	}
	iss, ok := jsonfield.AsIssues(err)
	if !ok || len(iss) != 1 || iss[0].Code != jsonfield.CodeRequired || iss[0].Path != "/address/street" {
		t.Fatalf("unexpected issues: %v", iss)
	}
}

func TestComposite_OptionalNestedFieldOmitted(t *testing.T) {
	reg := fields.NewRegistry()
	f := jsonfield.JSON("profile", jsonfield.String("nick"), jsonfield.Int("age"))

	cols, err := encode(t, reg, f, map[string]any{"age": 42}, jsonfield.NewWriteContext("user"))
	if err != nil {
		t.Fatalf("encode err: %v", err)
	}
	if cols[0].Value != `{"age":42}` {
		t.Fatalf("optional field must not be written: %v", cols[0].Value)
	}
}

func TestComposite_AggregatesEveryFailure(t *testing.T) {
	reg := fields.NewRegistry()
	f := jsonfield.JSON("profile",
		jsonfield.String("name").Required(),
		jsonfield.Int("age"),
		jsonfield.Bool("active").Required(),
	)
	wc := jsonfield.NewWriteContext("user")

	_, err := encode(t, reg, f, map[string]any{"name": 5, "age": "old", "zeta": 1, "alpha": 2}, wc)
	iss, ok := jsonfield.AsIssues(err)
	if !ok {
		t.Fatalf("expected issues, got %v", err)
	}
	want := []struct{ path, code string }{
		{"/profile/name", jsonfield.CodeInvalidType},
		{"/profile/age", jsonfield.CodeInvalidType},
		{"/profile/active", jsonfield.CodeRequired},
	}
	if len(iss) != len(want) {
		t.Fatalf("expected %d issues, got %v", len(want), iss)
	}
	for i, w := range want {
		if iss[i].Path != w.path || iss[i].Code != w.code {
			t.Fatalf("issue %d = %s %s, want %s %s", i, iss[i].Path, iss[i].Code, w.path, w.code)
		}
	}

	errs := exceptionsOf(t, wc)
	if len(errs) != 2 {
		t.Fatalf("expected two unexpected keys, got %v", errs)
	}
	if errs[0].(*jsonfield.UnexpectedFieldError).Key != "alpha" || errs[1].(*jsonfield.UnexpectedFieldError).Key != "zeta" {
		t.Fatalf("unexpected keys must be reported in key order: %v", errs)
	}
}

func TestComposite_UnexpectedKeysJoinAggregateWithoutCollector(t *testing.T) {
	reg := fields.NewRegistry()
	_, err := encode(t, reg, addressSchema(), map[string]any{"ghost": true}, jsonfield.WriteContext{})
	iss, ok := jsonfield.AsIssues(err)
	if !ok || len(iss) != 2 {
		t.Fatalf("expected unknown key then required, got %v", err)
	}
	if iss[0].Code != jsonfield.CodeUnknownKey || iss[0].Path != "/address/ghost" {
		t.Fatalf("unexpected first issue: %+v", iss[0])
	}
	if iss[1].Code != jsonfield.CodeRequired || iss[1].Path != "/address/street" {
		t.Fatalf("unexpected second issue: %+v", iss[1])
	}
}

func TestComposite_NestedAggregatesAreFlattened(t *testing.T) {
	reg := fields.NewRegistry()
	order := jsonfield.JSON("order",
		jsonfield.JSON("billing", jsonfield.String("city").Required(), jsonfield.Int("zip")),
		jsonfield.Float("total").Required(),
	)
	wc := jsonfield.NewWriteContext("order").WithPath("/orders/0")

	_, err := encode(t, reg, order, map[string]any{"billing": map[string]any{"zip": "x"}}, wc)
	var agg *jsonfield.JSONFieldError
	if !errors.As(err, &agg) {
		t.Fatalf("expected aggregate, got %v", err)
	}
	if agg.Path != "/orders/0/order" {
		t.Fatalf("unexpected aggregate path %q", agg.Path)
	}
	paths := []string{}
	for _, f := range agg.Failures {
		if _, nested := f.(interface{ Unwrap() []error }); nested {
			t.Fatalf("aggregates must not be nested: %#v", f)
		}
		paths = append(paths, f.FailurePath())
	}
	want := []string{"/orders/0/order/billing/city", "/orders/0/order/billing/zip", "/orders/0/order/total"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
}

func TestComposite_NestedEncodeSuccess(t *testing.T) {
	reg := fields.NewRegistry()
	order := jsonfield.JSON("order",
		jsonfield.JSON("billing", jsonfield.String("city").Required(), jsonfield.Int("zip")),
		jsonfield.Float("total"),
		jsonfield.DateTime("placedAt"),
	)
	cols, err := encode(t, reg, order, map[string]any{
		"billing":  map[string]any{"city": "Berlin", "zip": 10115},
		"total":    1.0,
		"placedAt": "2025-01-01T10:00:00+02:00",
	}, jsonfield.NewWriteContext("order"))
	if err != nil {
		t.Fatalf("encode err: %v", err)
	}
	want := `{"billing":{"city":"Berlin","zip":10115},"placedAt":"2025-01-01 08:00:00.000","total":1.0}`
	if cols[0].Value != want {
		t.Fatalf("got %v\nwant %s", cols[0].Value, want)
	}
}

func TestComposite_StripsDiscriminator(t *testing.T) {
	reg := fields.NewRegistry()
	wc := jsonfield.NewWriteContext("customer")
	cols, err := encode(t, reg, addressSchema(), map[string]any{"_class": "Shipping", "street": "Main"}, wc)
	if err != nil {
		t.Fatalf("encode err: %v", err)
	}
	if len(exceptionsOf(t, wc)) != 0 {
		t.Fatalf("discriminator must not be reported as unexpected")
	}
	if cols[0].Value != `{"street":"Main"}` {
		t.Fatalf("unexpected storage text: %v", cols[0].Value)
	}
}

func TestComposite_ArrayUnderMapping(t *testing.T) {
	reg := fields.NewRegistry()
	wc := jsonfield.NewWriteContext("customer")
	_, err := encode(t, reg, addressSchema(), []any{"Main"}, wc)
	if err == nil {
		t.Fatalf("expected required failure")
	}
	errs := exceptionsOf(t, wc)
	if len(errs) != 1 || errs[0].(*jsonfield.UnexpectedFieldError).Path != "/address/0" {
		t.Fatalf("array entries are unexpected keys, got %v", errs)
	}
}

func TestComposite_TopLevelValidation(t *testing.T) {
	reg := fields.NewRegistry()

	_, err := encode(t, reg, jsonfield.JSON("meta"), "text", jsonfield.NewWriteContext("e"))
	var fe *jsonfield.FieldError
	if !errors.As(err, &fe) || fe.Path != "/meta" || fe.Violations[0].Code != jsonfield.CodeInvalidType {
		t.Fatalf("expected invalid_type at /meta, got %v", err)
	}

	_, err = encode(t, reg, jsonfield.JSON("meta").Required(), nil, jsonfield.NewWriteContext("e"))
	if !errors.As(err, &fe) || fe.Violations[0].Code != jsonfield.CodeRequired {
		t.Fatalf("expected required failure, got %v", err)
	}
}

func TestComposite_NullUsesDefault(t *testing.T) {
	reg := fields.NewRegistry()

	cols, err := encode(t, reg, jsonfield.JSON("meta").WithDefault(map[string]any{"v": 1}), nil, jsonfield.NewWriteContext("e"))
	if err != nil || cols[0].Value != `{"v":1}` {
		t.Fatalf("expected default, got %v %v", cols, err)
	}

	cols, err = encode(t, reg, jsonfield.JSON("meta"), nil, jsonfield.NewWriteContext("e"))
	if err != nil || len(cols) != 1 || cols[0].Key != "meta" || cols[0].Value != nil {
		t.Fatalf("expected a null column, got %#v %v", cols, err)
	}
}

func TestComposite_ScalarDefaultUnderMappingIsRejected(t *testing.T) {
	reg := fields.NewRegistry()
	f := jsonfield.JSON("c", jsonfield.String("s")).WithDefault("oops")

	cols, err := encode(t, reg, f, nil, jsonfield.NewWriteContext("e"))
	var fe *jsonfield.FieldError
	if !errors.As(err, &fe) || fe.Path != "/c" || fe.Violations[0].Code != jsonfield.CodeInvalidType {
		t.Fatalf("expected invalid_type at /c, got %#v %v", cols, err)
	}
	if err := reg.Compile(f); err == nil {
		t.Fatalf("compile must reject a scalar composite default")
	}
}

func TestComposite_RequiredOpaqueNullIsReported(t *testing.T) {
	reg := fields.NewRegistry()
	f := jsonfield.JSON("doc", jsonfield.JSON("payload").Required(), jsonfield.JSON("meta"))

	_, err := encode(t, reg, f, map[string]any{"payload": nil, "meta": nil}, jsonfield.NewWriteContext("e"))
	iss, ok := jsonfield.AsIssues(err)
	if !ok || len(iss) != 1 || iss[0].Path != "/doc/payload" || iss[0].Code != jsonfield.CodeRequired {
		t.Fatalf("expected required at /doc/payload, got %v", err)
	}

	cols, err := encode(t, reg, f, map[string]any{"payload": []any{1}, "meta": nil}, jsonfield.NewWriteContext("e"))
	if err != nil || cols[0].Value != `{"meta":null,"payload":[1]}` {
		t.Fatalf("got %#v %v", cols, err)
	}
}

func TestComposite_NestedStorageNameIsRejected(t *testing.T) {
	reg := fields.NewRegistry()
	f := jsonfield.JSON("price", jsonfield.Float("amount").WithStorageName("amt"))
	if err := reg.Compile(f); err == nil {
		t.Fatalf("nested properties must keep their property name in storage")
	}
	if _, err := jsonfield.NewDefinition("product", reg, f); err == nil {
		t.Fatalf("definition must not accept the field")
	}
}

func TestComposite_SchemaTypeMismatch(t *testing.T) {
	reg := fields.NewRegistry()
	composite, err := reg.Resolve(jsonfield.JSON("x"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	str := jsonfield.String("name")
	var sfe *jsonfield.SerializerFieldError
	_, err = composite.Encode(context.Background(), str, jsonfield.NewExistence(), jsonfield.Pair{Key: "name", Value: "x", Exists: true}, jsonfield.NewWriteContext("e"))
	if !errors.As(err, &sfe) || sfe.Got != jsonfield.TypeString {
		t.Fatalf("expected serializer field error, got %v", err)
	}
	if jsonfield.IsValidationError(err) {
		t.Fatalf("configuration errors are not validation failures")
	}
	_, err = composite.Decode(context.Background(), str, `"x"`)
	if !errors.As(err, &sfe) {
		t.Fatalf("expected serializer field error on decode, got %v", err)
	}
}

func TestComposite_DecodeNullReturnsDefault(t *testing.T) {
	reg := fields.NewRegistry()
	def := map[string]any{"street": "unknown"}

	v, err := decode(t, reg, addressSchema().WithDefault(def), nil)
	if err != nil || !reflect.DeepEqual(v, def) {
		t.Fatalf("expected default, got %v %v", v, err)
	}
	v, err = decode(t, reg, addressSchema(), nil)
	if err != nil || v != nil {
		t.Fatalf("expected nil default, got %v %v", v, err)
	}
}

func TestComposite_RoundTripWithoutMapping(t *testing.T) {
	reg := fields.NewRegistry()
	f := jsonfield.JSON("custom")
	record := map[string]any{
		"list":  []any{int64(1), "two", nil, 3.5},
		"flag":  true,
		"ratio": 2.0,
		"inner": map[string]any{"name": "Grüße 日本"},
	}
	cols, err := encode(t, reg, f, record, jsonfield.NewWriteContext("e"))
	if err != nil {
		t.Fatalf("encode err: %v", err)
	}
	want := `{"flag":true,"inner":{"name":"Grüße 日本"},"list":[1,"two",null,3.5],"ratio":2.0}`
	if cols[0].Value != want {
		t.Fatalf("got %v\nwant %s", cols[0].Value, want)
	}
	back, err := decode(t, reg, f, cols[0].Value)
	if err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if !reflect.DeepEqual(back, record) {
		t.Fatalf("round trip mismatch: %#v", back)
	}
}

func TestComposite_FloatZeroFractionSurvivesCycle(t *testing.T) {
	reg := fields.NewRegistry()
	f := jsonfield.JSON("price", jsonfield.Float("amount"))

	cols, err := encode(t, reg, f, map[string]any{"amount": 1.0}, jsonfield.NewWriteContext("e"))
	if err != nil || cols[0].Value != `{"amount":1.0}` {
		t.Fatalf("got %v %v", cols, err)
	}
	back, err := decode(t, reg, f, cols[0].Value)
	if err != nil {
		t.Fatalf("decode err: %v", err)
	}
	cols, err = encode(t, reg, f, back, jsonfield.NewWriteContext("e"))
	if err != nil || cols[0].Value != `{"amount":1.0}` {
		t.Fatalf("second cycle changed the text: %v %v", cols, err)
	}
}

func TestComposite_DecodeNormalizesTimestamps(t *testing.T) {
	reg := fields.NewRegistry()
	f := jsonfield.JSON("event",
		jsonfield.DateTime("at"),
		jsonfield.Date("day"),
		jsonfield.JSON("meta", jsonfield.DateTime("seen")),
		jsonfield.String("note"),
	)
	stored := `{"at":"2025-01-01T10:00:00+02:00","day":"2025-01-02","meta":{"seen":"2025-03-04 05:06:07.000","x":1},"note":null,"other":1}`

	v, err := decode(t, reg, f, stored)
	if err != nil {
		t.Fatalf("decode err: %v", err)
	}
	want := map[string]any{
		"at":    "2025-01-01 08:00:00.000",
		"day":   "2025-01-02",
		"meta":  map[string]any{"seen": "2025-03-04 05:06:07.000", "x": int64(1)},
		"note":  nil,
		"other": int64(1),
	}
	if !reflect.DeepEqual(v, want) {
		t.Fatalf("got %#v\nwant %#v", v, want)
	}
}

func TestComposite_DecodeInvalidNestedValue(t *testing.T) {
	reg := fields.NewRegistry()
	f := jsonfield.JSON("event", jsonfield.DateTime("at"))
	if _, err := decode(t, reg, f, `{"at":"yesterday"}`); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := decode(t, reg, f, `{"at":`); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestComposite_StrictDecode(t *testing.T) {
	f := jsonfield.JSON("custom")
	dup := `{"a":1,"a":2}`

	if _, err := decode(t, fields.NewRegistry(), f, dup); err != nil {
		t.Fatalf("lenient decode must accept duplicates: %v", err)
	}
	if _, err := decode(t, fields.NewRegistry(jsonfield.WithStrictDecode()), f, dup); err == nil {
		t.Fatalf("strict decode must reject duplicate keys")
	}
}
