// Package testutil provides a mock paginated REST API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock REST API. Unregistered paths return 404.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	requests []*http.Request
}

// NewMockAPI starts a mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests = append(mock.requests, r.Clone(r.Context()))
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if !exists {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "not found"}`))
			return
		}
		handler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears the request log.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Queries returns the query string of every request, in order.
func (m *MockAPI) Queries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.requests))
	for i, r := range m.requests {
		out[i] = r.URL.Query()
	}
	return out
}

// QueryValues returns the value of param for every request, in order.
func (m *MockAPI) QueryValues(param string) []string {
	var out []string
	for _, q := range m.Queries() {
		out = append(out, q.Get(param))
	}
	return out
}

// LastRequest returns the most recent request, or nil.
func (m *MockAPI) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence serves responses in order; the last one repeats.
func (m *MockAPI) SetSequence(path string, responses ...MockResponse) {
	var (
		mu sync.Mutex
		i  int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[i]
		if i < len(responses)-1 {
			i++
		}
		mu.Unlock()
		writeResponse(w, resp)
	})
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// Items returns n records {"id": 1..n}.
func Items(n int) []map[string]any {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{"id": i + 1}
	}
	return items
}

// ServeOffsetLimit serves items under {"items": [...]} using offset/limit params.
func (m *MockAPI) ServeOffsetLimit(path string, items []map[string]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		offset := intParam(r, "offset", 0)
		limit := intParam(r, "limit", 100)
		writeJSON(w, map[string]any{"items": window(items, offset, limit)})
	})
}

// ServePageNumber serves items under {"items": [...]} using 1-indexed page/page_size params.
func (m *MockAPI) ServePageNumber(path string, items []map[string]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := intParam(r, "page", 1)
		size := intParam(r, "page_size", 100)
		writeJSON(w, map[string]any{"items": window(items, (page-1)*size, size)})
	})
}

// ServeCursor serves items in pages of size with the next offset as an
// opaque cursor at "next_cursor"; the last page has no cursor.
func (m *MockAPI) ServeCursor(path string, items []map[string]any, size int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		offset := intParam(r, "cursor", 0)
		body := map[string]any{"items": window(items, offset, size)}
		if offset+size < len(items) {
			body["next_cursor"] = strconv.Itoa(offset + size)
		}
		writeJSON(w, body)
	})
}

// ServeNextURL serves items in pages of size with an absolute "next" URL.
func (m *MockAPI) ServeNextURL(path string, items []map[string]any, size int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		offset := intParam(r, "from", 0)
		body := map[string]any{"items": window(items, offset, size)}
		if offset+size < len(items) {
			body["next"] = fmt.Sprintf("%s%s?from=%d", m.URL(), path, offset+size)
		} else {
			body["next"] = nil
		}
		writeJSON(w, body)
	})
}

// ServeLinkHeader serves a bare array in pages of size with RFC 8288 Link headers.
func (m *MockAPI) ServeLinkHeader(path string, items []map[string]any, size int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := intParam(r, "page", 1)
		last := (len(items) + size - 1) / size
		links := fmt.Sprintf(`<%s%s?page=1>; rel="first", <%s%s?page=%d>; rel="last"`, m.URL(), path, m.URL(), path, last)
		if page < last {
			links = fmt.Sprintf(`<%s%s?page=%d>; rel="next", `, m.URL(), path, page+1) + links
		}
		w.Header().Set("Link", links)
		writeJSON(w, window(items, (page-1)*size, size))
	})
}

func window(items []map[string]any, offset, limit int) []map[string]any {
	if offset >= len(items) || offset < 0 {
		return []map[string]any{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}

// NewJSONResponse creates a 200 OK response with a JSON body.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"error": "service unavailable"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response with Retry-After.
func NewRateLimitResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After":           strconv.Itoa(retryAfter),
			"X-RateLimit-Remaining": "0",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}
