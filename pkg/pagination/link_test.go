package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextLink(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
		ok     bool
	}{
		{
			name:   "next and last",
			values: []string{`<https://x/p2>; rel="next", <https://x/p5>; rel="last"`},
			want:   "https://x/p2",
			ok:     true,
		},
		{
			name:   "no next",
			values: []string{`<https://x/p1>; rel="first", <https://x/p5>; rel="last"`},
		},
		{
			name:   "unquoted rel",
			values: []string{`<https://x/p3>; rel=next`},
			want:   "https://x/p3",
			ok:     true,
		},
		{
			name:   "multi-valued rel",
			values: []string{`<https://x/p3>; rel="prefetch next"`},
			want:   "https://x/p3",
			ok:     true,
		},
		{
			name:   "comma inside url",
			values: []string{`<https://x/items?ids=1,2,3&page=2>; rel="next"`},
			want:   "https://x/items?ids=1,2,3&page=2",
			ok:     true,
		},
		{
			name:   "next is not first entry",
			values: []string{`<https://x/p1>; rel="prev", <https://x/p3>; title="a, b"; rel="next"`},
			want:   "https://x/p3",
			ok:     true,
		},
		{
			name:   "separate header values",
			values: []string{`<https://x/p1>; rel="prev"`, `<https://x/p3>; rel="next"`},
			want:   "https://x/p3",
			ok:     true,
		},
		{
			name:   "case insensitive rel",
			values: []string{`<https://x/p2>; REL="Next"`},
			want:   "https://x/p2",
			ok:     true,
		},
		{
			name:   "empty",
			values: []string{""},
		},
		{
			name:   "no header",
			values: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextLink(tt.values...)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLinkHeader(t *testing.T) {
	links := ParseLinkHeader(`<https://x/p2>; rel="next"; type="application/json", garbage, <https://x/p5>; rel="last"`)
	require.Len(t, links, 2)

	assert.Equal(t, "https://x/p2", links[0].URL)
	assert.Equal(t, []string{"next"}, links[0].Rels)
	assert.Equal(t, "application/json", links[0].Params["type"])
	assert.True(t, links[1].HasRel("last"))
	assert.False(t, links[1].HasRel("next"))
}
