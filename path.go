package jsonfield

import "strings"

// JoinPath appends key to a JSON Pointer, escaping '~' and '/' per RFC 6901.
// An empty base denotes the document root.
func JoinPath(base, key string) string {
	esc := strings.ReplaceAll(strings.ReplaceAll(key, "~", "~0"), "/", "~1")
	if base == "/" {
		base = ""
	}
	return base + "/" + esc
}
