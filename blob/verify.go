package blob

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
)

// DuplicateKey reports an object key that occurs more than once.
type DuplicateKey struct {
	Path string // JSON Pointer of the object holding the key.
	Key  string
}

// VerifyError is returned by Verify when the stored text is not a
// structurally valid document.
type VerifyError struct {
	Duplicates []DuplicateKey
	Cause      error
}

func (e *VerifyError) Error() string {
	if e.Cause != nil {
		return "blob: malformed document: " + e.Cause.Error()
	}
	parts := make([]string, 0, len(e.Duplicates))
	for _, d := range e.Duplicates {
		parts = append(parts, fmt.Sprintf("%q at %s", d.Key, d.Path))
	}
	return "blob: duplicate keys: " + strings.Join(parts, ", ")
}

func (e *VerifyError) Unwrap() error { return e.Cause }

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type frame struct {
	kind         containerKind
	path         string
	keys         map[string]struct{}
	expectingKey bool
	lastKey      string
	index        int
}

// Verify checks that data is exactly one well-formed JSON document with no
// duplicate object keys. It returns nil or a *VerifyError.
func Verify(data []byte) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var (
		stack []frame
		dups  []DuplicateKey
		roots int
	)

	// childPath computes the pointer of the value about to be read.
	childPath := func() string {
		if len(stack) == 0 {
			return ""
		}
		top := &stack[len(stack)-1]
		if top.kind == kindObject {
			return top.path + "/" + escape(top.lastKey)
		}
		p := top.path + "/" + strconv.Itoa(top.index)
		top.index++
		return p
	}
	valueDone := func() {
		if len(stack) == 0 {
			roots++
			return
		}
		top := &stack[len(stack)-1]
		if top.kind == kindObject {
			top.expectingKey = true
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &VerifyError{Cause: err}
		}
		switch v := tok.(type) {
		case gojson.Delim:
			switch v {
			case '{':
				stack = append(stack, frame{kind: kindObject, path: childPath(), keys: map[string]struct{}{}, expectingKey: true})
			case '[':
				stack = append(stack, frame{kind: kindArray, path: childPath()})
			case '}', ']':
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
				valueDone()
			}
		case string:
			if len(stack) > 0 {
				top := &stack[len(stack)-1]
				if top.kind == kindObject && top.expectingKey {
					if _, ok := top.keys[v]; ok {
						p := top.path
						if p == "" {
							p = "/"
						}
						dups = append(dups, DuplicateKey{Path: p, Key: v})
					}
					top.keys[v] = struct{}{}
					top.lastKey = v
					top.expectingKey = false
					continue
				}
			}
			_ = childPath()
			valueDone()
		default:
			_ = childPath()
			valueDone()
		}
	}

	if len(stack) > 0 {
		return &VerifyError{Cause: io.ErrUnexpectedEOF}
	}
	if roots != 1 {
		return &VerifyError{Cause: fmt.Errorf("expected one document, found %d", roots)}
	}
	if len(dups) > 0 {
		return &VerifyError{Duplicates: dups}
	}
	return nil
}

func escape(key string) string {
	return strings.ReplaceAll(strings.ReplaceAll(key, "~", "~0"), "/", "~1")
}
