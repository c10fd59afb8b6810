package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestState_IsExhausted(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{
			name:     "unknown remaining",
			state:    State{Remaining: -1, ResetAt: now.Add(time.Minute)},
			expected: false,
		},
		{
			name:     "requests left",
			state:    State{Remaining: 10, ResetAt: now.Add(time.Minute)},
			expected: false,
		},
		{
			name:     "zero remaining before reset",
			state:    State{Remaining: 0, ResetAt: now.Add(time.Minute)},
			expected: true,
		},
		{
			name:     "zero remaining after reset",
			state:    State{Remaining: 0, ResetAt: now.Add(-time.Second)},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsExhausted(now); got != tt.expected {
				t.Errorf("IsExhausted() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	if got := (State{ResetAt: now.Add(30 * time.Second)}).TimeUntilReset(now); got != 30*time.Second {
		t.Errorf("TimeUntilReset() = %v, want 30s", got)
	}
	if got := (State{ResetAt: now.Add(-time.Minute)}).TimeUntilReset(now); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0 for past reset", got)
	}
}

func TestParseState(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		headers       map[string]string
		expectOK      bool
		wantRemaining int
		wantReset     time.Time
	}{
		{
			name:     "no headers",
			headers:  map[string]string{},
			expectOK: false,
		},
		{
			name:     "non numeric remaining",
			headers:  map[string]string{HeaderRemaining: "lots"},
			expectOK: false,
		},
		{
			name:          "relative reset",
			headers:       map[string]string{HeaderRemaining: "4", HeaderReset: "60"},
			expectOK:      true,
			wantRemaining: 4,
			wantReset:     now.Add(60 * time.Second),
		},
		{
			name:          "epoch reset",
			headers:       map[string]string{HeaderRemaining: "0", HeaderReset: "1735733400"},
			expectOK:      true,
			wantRemaining: 0,
			wantReset:     time.Unix(1735733400, 0),
		},
		{
			name:          "remaining without reset",
			headers:       map[string]string{HeaderRemaining: "99"},
			expectOK:      true,
			wantRemaining: 99,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}

			state, ok := ParseState(h, now)
			if ok != tt.expectOK {
				t.Fatalf("ParseState() ok = %v, want %v", ok, tt.expectOK)
			}
			if !ok {
				return
			}
			if state.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemaining)
			}
			if !state.ResetAt.Equal(tt.wantReset) {
				t.Errorf("ResetAt = %v, want %v", state.ResetAt, tt.wantReset)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		value    string
		expectOK bool
		want     time.Duration
	}{
		{"absent", "", false, 0},
		{"seconds", "7", true, 7 * time.Second},
		{"negative", "-3", false, 0},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), true, 90 * time.Second},
		{"past date", now.Add(-time.Hour).Format(http.TimeFormat), true, 0},
		{"garbage", "soon", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set(HeaderRetryAfter, tt.value)
			}
			got, ok := RetryAfter(h, now)
			if ok != tt.expectOK {
				t.Fatalf("RetryAfter() ok = %v, want %v", ok, tt.expectOK)
			}
			if got != tt.want {
				t.Errorf("RetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}
