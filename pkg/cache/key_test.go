package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "no query",
			key: CacheKey{
				Method: "GET",
				URL:    "https://api.example.com/v1/items",
			},
			want: "ingest:page:GET:https://api.example.com/v1/items",
		},
		{
			name: "lowercase method normalized",
			key: CacheKey{
				Method: "get",
				URL:    "https://api.example.com/v1/items",
			},
			want: "ingest:page:GET:https://api.example.com/v1/items",
		},
		{
			name: "query sorted by name",
			key: CacheKey{
				Method: "GET",
				URL:    "https://api.example.com/v1/items",
				Query: url.Values{
					"offset": []string{"200"},
					"limit":  []string{"100"},
				},
			},
			want: "ingest:page:GET:https://api.example.com/v1/items:limit=100&offset=200",
		},
		{
			name: "repeated values keep order",
			key: CacheKey{
				Method: "GET",
				URL:    "https://api.example.com/v1/items",
				Query:  url.Values{"tag": []string{"b", "a"}},
			},
			want: "ingest:page:GET:https://api.example.com/v1/items:tag=b&tag=a",
		},
		{
			name: "credential appended",
			key: CacheKey{
				Method:     "GET",
				URL:        "https://api.example.com/v1/me",
				Query:      url.Values{"page": []string{"1"}},
				Credential: "ab12",
			},
			want: "ingest:page:GET:https://api.example.com/v1/me:page=1:cred=ab12",
		},
		{
			name: "values escaped",
			key: CacheKey{
				Method: "GET",
				URL:    "https://api.example.com/v1/items",
				Query:  url.Values{"cursor": []string{"a b&c"}},
			},
			want: "ingest:page:GET:https://api.example.com/v1/items:cursor=a+b%26c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("CacheKey.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	key := CacheKey{
		Method: "GET",
		URL:    "https://api.example.com/v1/items",
		Query: url.Values{
			"z": []string{"1"},
			"a": []string{"2"},
			"m": []string{"3"},
		},
	}

	first := key.String()
	for i := 0; i < 100; i++ {
		if got := key.String(); got != first {
			t.Fatalf("iteration %d: got %q, want %q", i, got, first)
		}
	}
}
