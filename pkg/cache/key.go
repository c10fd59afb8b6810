package cache

import (
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every key written by this package.
const keyPrefix = "ingest:page"

// CacheKey identifies one page request.
type CacheKey struct {
	// Method is the HTTP method (only GET is cached by the client).
	Method string

	// URL is the absolute request URL without query string.
	URL string

	// Query is the full query string sent with the request.
	Query url.Values

	// Credential fingerprints the credentials the request was sent with so
	// authenticated pages are never shared between callers. Empty for
	// anonymous requests.
	Credential string
}

// String generates a deterministic cache key string.
// Format: ingest:page:GET:https://host/path:a=1&b=2:cred=3f9a...
//
// Query parameters are sorted by name; repeated values keep their order.
func (k CacheKey) String() string {
	parts := []string{keyPrefix, strings.ToUpper(k.Method), k.URL}

	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		pairs := make([]string, 0, len(names))
		for _, name := range names {
			for _, v := range k.Query[name] {
				pairs = append(pairs, url.QueryEscape(name)+"="+url.QueryEscape(v))
			}
		}
		parts = append(parts, strings.Join(pairs, "&"))
	}

	if k.Credential != "" {
		parts = append(parts, "cred="+k.Credential)
	}

	return strings.Join(parts, ":")
}
