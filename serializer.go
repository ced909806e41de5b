package jsonfield

import (
	"context"
	"sync"
)

// Serializer encodes a caller value of one field type into storage columns and
// decodes a stored value back. Every field kind implements it so composite
// fields can delegate to their nested fields.
type Serializer interface {
	FieldSchemaType() FieldType
	// Encode returns the storage columns for pair. Most field kinds return
	// exactly one column.
	Encode(ctx context.Context, field *FieldSchema, existence Existence, pair Pair, wc WriteContext) ([]Column, error)
	// Decode converts a stored value into the caller representation.
	Decode(ctx context.Context, field *FieldSchema, value any) (any, error)
}

// Pair is one caller supplied slot. Exists is false when the value is a
// placeholder for a key the caller did not send.
type Pair struct {
	Key    string
	Value  any
	Exists bool
}

// Column is one encoded storage value.
type Column struct {
	Key   string
	Value any
}

// Existence describes the entity owning the field being written.
type Existence struct {
	Entity  string
	Exists  bool           // The entity is already stored (update).
	Child   bool           // The entity inherits from a parent entity.
	Current map[string]any // Stored values keyed by storage name.
}

// NewExistence returns the marker of a new, standalone entity. Nested values
// are always validated against it: merging into stored nested values is not
// supported.
func NewExistence() Existence { return Existence{} }

// CommandQueue receives write commands produced by a successful write. This
// package never inspects it; composite fields only hand it down.
type CommandQueue interface {
	Add(cmd WriteCommand)
}

// WriteCommand is a validated row ready for the storage layer.
type WriteCommand struct {
	Definition string
	Existing   bool
	Payload    map[string]any
}

// Commands is an in-memory CommandQueue.
type Commands struct {
	mu   sync.Mutex
	cmds []WriteCommand
}

// Add queues cmd.
func (q *Commands) Add(cmd WriteCommand) {
	q.mu.Lock()
	q.cmds = append(q.cmds, cmd)
	q.mu.Unlock()
}

// All returns the queued commands in order.
func (q *Commands) All() []WriteCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]WriteCommand(nil), q.cmds...)
}

// ExceptionCollector gathers failures across the fields of one write.
type ExceptionCollector interface {
	Add(errs ...error)
}

// Exceptions is the default ExceptionCollector.
type Exceptions struct {
	mu   sync.Mutex
	errs []error
}

// Add records every non-nil error.
func (e *Exceptions) Add(errs ...error) {
	e.mu.Lock()
	for _, err := range errs {
		if err != nil {
			e.errs = append(e.errs, err)
		}
	}
	e.mu.Unlock()
}

// Errors returns the collected errors in order.
func (e *Exceptions) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

// Len is the number of collected errors.
func (e *Exceptions) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

// Issues flattens every collected validation failure in order.
func (e *Exceptions) Issues() Issues {
	var out Issues
	for _, err := range e.Errors() {
		if iss, ok := AsIssues(err); ok {
			out = append(out, iss...)
			continue
		}
		out = append(out, Issue{Path: "/", Code: CodeParseError, Message: err.Error(), Cause: err})
	}
	return out
}

// Err returns the collected failures as Issues, or nil when nothing was
// collected.
func (e *Exceptions) Err() error {
	if e.Len() == 0 {
		return nil
	}
	return e.Issues()
}

// WriteContext carries the write-scoped collaborators handed to serializers.
type WriteContext struct {
	Definition string // Name of the entity definition being written.
	Path       string // JSON Pointer of the parent of the field being encoded.
	Commands   CommandQueue
	Exceptions ExceptionCollector
}

// NewWriteContext returns a root context with a fresh collector and queue.
func NewWriteContext(definition string) WriteContext {
	return WriteContext{Definition: definition, Commands: &Commands{}, Exceptions: &Exceptions{}}
}

// WithPath derives a context that shares every collaborator but the path.
func (wc WriteContext) WithPath(path string) WriteContext {
	wc.Path = path
	return wc
}
