// Package jsonfield encodes and decodes composite fields: nested structured
// values stored as one serialized document column.
//
// - FieldSchema describes a field; composite (TypeJSON) fields carry an ordered property mapping of nested fields
// - Serializer is the contract every field kind implements; Registry binds schemas to serializers
// - CompositeSerializer validates a nested value, re-encodes each declared nested field through its own serializer and aggregates nested failures into one *JSONFieldError
// - Definition drives the serializers of an entity's top-level fields for a whole record
//
// Design policy:
// - Schemas are immutable and shared; ValueStack and failure lists are call-local.
// - Failures are plain error values: *FieldError, *UnexpectedFieldError and the flat *JSONFieldError aggregate. AsIssues renders any of them as Issues with JSON Pointer paths.
// - The storage text is produced by the blob subpackage; scalar serializers live in fields.
//
// Typical usage:
//
//	reg := fields.NewRegistry()
//	address := jsonfield.JSON("address",
//		jsonfield.String("street").Required(),
//		jsonfield.JSON("extra"),
//	)
//	ser, _ := reg.Resolve(address)
//	cols, err := ser.Encode(ctx, address, jsonfield.NewExistence(),
//		jsonfield.Pair{Key: "address", Value: input, Exists: true},
//		jsonfield.NewWriteContext("customer"))
//	iss, _ := jsonfield.AsIssues(err)
package jsonfield
