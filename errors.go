package jsonfield

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/jsonfield/i18n"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeInvalidType   = "invalid_type"
	CodeRequired      = "required"
	CodeBlank         = "blank"
	CodeUnknownKey    = "unknown_key"
	CodeTooLong       = "too_long"
	CodeInvalidFormat = "invalid_format"
	CodeParseError    = "parse_error"
)

// ErrItemNotFound is returned by ValueStack.Pop for keys that were never
// supplied or were already consumed. It never leaves the composite serializer.
var ErrItemNotFound = errors.New("jsonfield: item not found")

// ErrUnknownFieldType is returned by the Registry for field types without a
// registered serializer.
var ErrUnknownFieldType = errors.New("jsonfield: no serializer registered for field type")

// Issue represents a single validation entry.
type Issue struct {
	Path    string // JSON Pointer (for example: /address/street).
	Code    string // One of the codes listed above.
	Message string
	// Params carries structured parameters (e.g., {"max":255, "got":300}).
	Params map[string]any
	Cause  error // Optional: underlying error.
}

// Issues is a collection of validation errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := min(n, maxShown)
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", iss[i].Code, iss[i].Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Failure is a leaf validation failure: it can be aggregated and rendered as
// Issues. *FieldError and *UnexpectedFieldError implement it.
type Failure interface {
	error
	FailurePath() string
	Issues() Issues
}

// FieldError reports that one field violated one or more constraints.
type FieldError struct {
	Path       string // Pointer of the field, key included.
	Key        string
	Violations Issues
}

func (e *FieldError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("invalid field %s", e.Path)
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return fmt.Sprintf("invalid field %s: %s", e.Path, strings.Join(msgs, "; "))
}

func (e *FieldError) FailurePath() string { return e.Path }

// Issues returns the violations anchored at the field path.
func (e *FieldError) Issues() Issues {
	out := make(Issues, 0, len(e.Violations))
	for _, v := range e.Violations {
		v.Path = e.Path
		out = append(out, v)
	}
	return out
}

// UnexpectedFieldError reports a key that the property mapping does not declare.
type UnexpectedFieldError struct {
	Path string
	Key  string
}

func (e *UnexpectedFieldError) Error() string {
	return fmt.Sprintf("unexpected field %q at %s", e.Key, e.Path)
}

func (e *UnexpectedFieldError) FailurePath() string { return e.Path }

func (e *UnexpectedFieldError) Issues() Issues {
	return Issues{{
		Path:    e.Path,
		Code:    CodeUnknownKey,
		Message: i18n.T(CodeUnknownKey, map[string]string{"key": e.Key}),
		Params:  map[string]any{"key": e.Key},
	}}
}

// JSONFieldError aggregates every nested failure of one composite field. The
// failures are always leaves: nested aggregates are spliced in, never wrapped.
type JSONFieldError struct {
	Path     string
	Failures []Failure
}

func (e *JSONFieldError) Error() string {
	return fmt.Sprintf("invalid json field %s: %s", e.Path, e.Issues().Error())
}

// Unwrap exposes the leaf failures to errors.Is/errors.As.
func (e *JSONFieldError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}

// Issues flattens the leaf failures in order.
func (e *JSONFieldError) Issues() Issues {
	var out Issues
	for _, f := range e.Failures {
		out = append(out, f.Issues()...)
	}
	return out
}

// SerializerFieldError reports a serializer invoked with a schema of another
// type. It is a configuration error and is never aggregated.
type SerializerFieldError struct {
	Serializer FieldType
	Field      string
	Got        FieldType
}

func (e *SerializerFieldError) Error() string {
	return fmt.Sprintf("serializer %q cannot handle field %q of type %q", e.Serializer, e.Field, e.Got)
}

// failureList accumulates leaf failures for one composite field.
type failureList []Failure

// merge records err when it is a validation failure and returns nil; any other
// error is returned unchanged so the caller aborts.
func (l *failureList) merge(err error) error {
	var agg *JSONFieldError
	if errors.As(err, &agg) {
		*l = append(*l, agg.Failures...)
		return nil
	}
	var leaf Failure
	if errors.As(err, &leaf) {
		*l = append(*l, leaf)
		return nil
	}
	return err
}

// AsIssues extracts Issues from an error. It understands Issues, every failure
// type of this package and the Exceptions collector error.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	var agg *JSONFieldError
	if errors.As(err, &agg) {
		return agg.Issues(), true
	}
	var leaf Failure
	if errors.As(err, &leaf) {
		return leaf.Issues(), true
	}
	return nil, false
}

// IsValidationError reports whether err is a validation failure (as opposed to
// a configuration or storage error).
func IsValidationError(err error) bool {
	_, ok := AsIssues(err)
	return ok
}
