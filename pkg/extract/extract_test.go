package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raws(t *testing.T, items []json.RawMessage) []string {
	t.Helper()
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = string(it)
	}
	return out
}

func TestRecords(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
		want []string
	}{
		{"root array", `[{"id":1},{"id":2}]`, "", []string{`{"id":1}`, `{"id":2}`}},
		{"root object wrapped", `{"id":1}`, "", []string{`{"id":1}`}},
		{"root scalar wrapped", `42`, "", []string{`42`}},
		{"nested array", `{"data":{"items":[1,2,3]}}`, "data.items", []string{"1", "2", "3"}},
		{"nested object wrapped", `{"data":{"item":{"id":9}}}`, "data.item", []string{`{"id":9}`}},
		{"missing segment", `{"data":{}}`, "data.items", []string{}},
		{"traverse scalar", `{"data":5}`, "data.items", []string{}},
		{"traverse array", `{"data":[{"items":[1]}]}`, "data.items", []string{}},
		{"null leaf", `{"data":null}`, "data", []string{}},
		{"empty array", `{"data":[]}`, "data", []string{}},
		{"unparseable", `{"data":`, "data", []string{}},
		{"empty doc", ``, "", []string{}},
		{"key order kept", `[{"b":1,"a":2}]`, "", []string{`{"b":1,"a":2}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Records(json.RawMessage(tt.doc), tt.path)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, raws(t, got))
		})
	}
}

func TestRecords_Idempotent(t *testing.T) {
	doc := json.RawMessage(`{"data":{"items":[{"id":1},{"id":1},{"id":2}]}}`)

	first := Records(doc, "data.items")
	second := Records(doc, "data.items")

	assert.Equal(t, raws(t, first), raws(t, second))
	assert.Len(t, first, 3, "duplicates pass through")
}

func TestLookup(t *testing.T) {
	doc := json.RawMessage(`{"meta":{"total":10,"next":null},"data":[]}`)

	v, ok := Lookup(doc, "meta.total")
	require.True(t, ok)
	assert.Equal(t, "10", string(v))

	_, ok = Lookup(doc, "meta.next")
	assert.False(t, ok, "null resolves as absent")

	_, ok = Lookup(doc, "meta.missing")
	assert.False(t, ok)

	v, ok = Lookup(doc, "")
	require.True(t, ok)
	assert.JSONEq(t, string(doc), string(v))
}

func TestString(t *testing.T) {
	doc := json.RawMessage(`{
		"cursor": "abc",
		"num": 12345,
		"float": 1.5,
		"flag": true,
		"done": false,
		"empty": "",
		"none": null,
		"obj": {"x": 1},
		"nested": {"next": "https://api.example.com/items?page=2"}
	}`)

	tests := []struct {
		path string
		want string
	}{
		{"cursor", "abc"},
		{"num", "12345"},
		{"float", "1.5"},
		{"flag", "true"},
		{"done", ""},
		{"empty", ""},
		{"none", ""},
		{"absent", ""},
		{"obj", ""},
		{"nested.next", "https://api.example.com/items?page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, String(doc, tt.path))
		})
	}
}
