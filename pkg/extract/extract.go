// Package extract locates records and metadata inside decoded JSON pages
// using dot-separated paths such as "data.items" or "meta.next_cursor".
//
// Values are returned as json.RawMessage so records keep their original
// bytes and key order.
package extract

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Lookup walks path through nested objects. An empty path returns doc itself.
// ok is false when a segment is missing, a non-object is traversed, or the
// resolved value is JSON null.
func Lookup(doc json.RawMessage, path string) (json.RawMessage, bool) {
	cur := bytes.TrimSpace(doc)
	if len(cur) == 0 || !json.Valid(cur) {
		return nil, false
	}

	if path != "" {
		for _, seg := range strings.Split(path, ".") {
			if len(cur) == 0 || cur[0] != '{' {
				return nil, false
			}
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(cur, &obj); err != nil {
				return nil, false
			}
			next, ok := obj[seg]
			if !ok {
				return nil, false
			}
			cur = bytes.TrimSpace(next)
		}
	}

	if isNull(cur) {
		return nil, false
	}
	return json.RawMessage(cur), true
}

// Records returns the records at path. An array yields its elements, any
// other value is wrapped as a single record, and a missing or null value
// yields an empty list.
func Records(doc json.RawMessage, path string) []json.RawMessage {
	v, ok := Lookup(doc, path)
	if !ok {
		return []json.RawMessage{}
	}
	if v[0] != '[' {
		return []json.RawMessage{v}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return []json.RawMessage{}
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items
}

// String returns the value at path as a string: JSON strings are unquoted,
// numbers and true are rendered as written, and null, false, absent or empty
// values give "". Objects and arrays also give "".
func String(doc json.RawMessage, path string) string {
	v, ok := Lookup(doc, path)
	if !ok {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'f':
		return ""
	default:
		return string(v)
	}
}

func isNull(v []byte) bool {
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}
