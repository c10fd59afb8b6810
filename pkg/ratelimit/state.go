// Package ratelimit paces requests to a paginated API. It combines a local
// token bucket with the rate-limit state the server advertises in response
// headers (X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After).
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names read by the tracker.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// State is the server-advertised rate-limit window as of the last response.
type State struct {
	// Remaining is the number of requests left in the window; -1 when unknown.
	Remaining int

	// ResetAt is when the window resets. Zero when unknown.
	ResetAt time.Time

	// LastUpdate is when this state was parsed.
	LastUpdate time.Time
}

// IsExhausted returns true if the server reported no remaining requests and
// the window has not reset yet.
func (s State) IsExhausted(now time.Time) bool {
	return s.Remaining == 0 && s.ResetAt.After(now)
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ParseState reads the rate-limit headers. ok is false when the response
// carries no rate-limit information.
//
// X-RateLimit-Reset is accepted either as a unix timestamp or as seconds
// until reset; values below one year in seconds are treated as relative.
func ParseState(h http.Header, now time.Time) (State, bool) {
	remainStr := strings.TrimSpace(h.Get(HeaderRemaining))
	if remainStr == "" {
		return State{}, false
	}
	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return State{}, false
	}

	state := State{Remaining: remain, LastUpdate: now}
	if resetStr := strings.TrimSpace(h.Get(HeaderReset)); resetStr != "" {
		if v, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			if v < int64((365 * 24 * time.Hour).Seconds()) {
				state.ResetAt = now.Add(time.Duration(v) * time.Second)
			} else {
				state.ResetAt = time.Unix(v, 0)
			}
		}
	}
	return state, true
}

// RetryAfter parses a Retry-After header given as delta seconds or HTTP date.
func RetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get(HeaderRetryAfter))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
