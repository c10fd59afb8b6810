package client

import (
	"errors"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestHTTPError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *HTTPError
		want string
	}{
		{
			name: "with body",
			err:  &HTTPError{StatusCode: 404, Body: []byte(`{"error":"nope"}`), URL: "https://x/items"},
			want: `http 404 from https://x/items: {"error":"nope"}`,
		},
		{
			name: "empty body",
			err:  &HTTPError{StatusCode: 500, URL: "https://x/items"},
			want: "http 500 from https://x/items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPError_TruncatesBody(t *testing.T) {
	err := &HTTPError{StatusCode: 500, Body: []byte(strings.Repeat("x", 1000)), URL: "u"}
	if len(err.Error()) > maxErrorBody+64 {
		t.Errorf("Error() length = %d, body not truncated", len(err.Error()))
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &TransportError{URL: "https://x", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestStatusCode(t *testing.T) {
	wrapped := errors.Join(ErrRetryExhausted, &HTTPError{StatusCode: 503})
	if got := StatusCode(wrapped); got != 503 {
		t.Errorf("StatusCode() = %d, want 503", got)
	}
	if got := StatusCode(errors.New("other")); got != 0 {
		t.Errorf("StatusCode() = %d, want 0", got)
	}
}
