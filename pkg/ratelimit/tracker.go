package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	remainingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_rate_limit_remaining",
		Help: "Requests remaining in the API's advertised rate-limit window",
	})

	waitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_rate_limit_wait_seconds",
		Help:    "Time spent waiting before a request by reason",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"reason"})
)

// Config configures a Tracker.
type Config struct {
	// RequestsPerSecond of 0 disables the token bucket.
	RequestsPerSecond float64
	Burst             int

	// RespectHeaders enables waiting for the advertised window reset.
	RespectHeaders bool

	// MaxWait caps a single header-driven wait.
	MaxWait time.Duration
}

// Tracker gates requests. The zero value is not usable; use NewTracker.
type Tracker struct {
	cfg     Config
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu    sync.Mutex
	state State
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTracker creates a new tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		cfg:    cfg,
		logger: logger,
		state:  State{Remaining: -1},
		now:    time.Now,
		sleep:  sleepCtx,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return t
}

// State returns the last parsed rate-limit state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until the next request may be sent.
func (t *Tracker) Wait(ctx context.Context) error {
	if t.limiter != nil {
		start := t.now()
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		waitSeconds.WithLabelValues("token_bucket").Observe(t.now().Sub(start).Seconds())
	}

	if !t.cfg.RespectHeaders {
		return nil
	}

	state := t.State()
	now := t.now()
	if !state.IsExhausted(now) {
		return nil
	}

	wait := state.TimeUntilReset(now)
	if t.cfg.MaxWait > 0 && wait > t.cfg.MaxWait {
		wait = t.cfg.MaxWait
	}

	t.logger.Warn().
		Dur("wait", wait).
		Time("reset_at", state.ResetAt).
		Msg("Rate limit window exhausted, waiting for reset")
	waitSeconds.WithLabelValues("window_reset").Observe(wait.Seconds())

	return t.sleep(ctx, wait)
}

// UpdateFromHeaders records the rate-limit state advertised by a response.
func (t *Tracker) UpdateFromHeaders(h http.Header) {
	state, ok := ParseState(h, t.now())
	if !ok {
		return
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	remainingGauge.Set(float64(state.Remaining))
	t.logger.Debug().
		Int("remaining", state.Remaining).
		Time("reset_at", state.ResetAt).
		Msg("Rate limit state updated")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
