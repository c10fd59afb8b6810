package client

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Sternrassler/rest-ingest/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.3, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// outcome is what a single attempt reports to the retry loop.
type outcome struct {
	err        error
	class      ErrorClass
	retryable  bool
	retryAfter time.Duration // zero unless the server sent Retry-After
}

// backoffDelay returns the wait before retry number n (1-based):
// factor * 2^(n-1), with ±20% jitter, capped at policy.MaxBackoff.
func backoffDelay(policy config.RetryPolicy, n int, jitter func() float64) time.Duration {
	if policy.BackoffFactor <= 0 || n < 1 {
		return 0
	}
	secs := policy.BackoffFactor * math.Pow(2, float64(n-1))
	d := time.Duration(secs * float64(time.Second))
	if jitter != nil {
		d = time.Duration(float64(d) * (0.8 + jitter()*0.4))
	}
	if policy.MaxBackoff > 0 && d > policy.MaxBackoff {
		d = policy.MaxBackoff
	}
	return d
}

// retryWithBackoff runs fn until it succeeds, reports a non-retryable
// failure, or MaxRetries retries have been spent.
func (s *Session) retryWithBackoff(ctx context.Context, fn func(attempt int) outcome) error {
	policy := s.cfg.Retry
	attempts := policy.MaxRetries + 1

	var last outcome
	for attempt := 1; attempt <= attempts; attempt++ {
		last = fn(attempt)
		if last.err == nil {
			if attempt > 1 {
				s.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if !last.retryable {
			return last.err
		}

		if attempt >= attempts {
			break
		}

		delay := backoffDelay(policy, attempt, rand.Float64)
		if last.retryAfter > 0 {
			delay = last.retryAfter
			if policy.MaxBackoff > 0 && delay > policy.MaxBackoff {
				delay = policy.MaxBackoff
			}
		}

		retriesTotal.WithLabelValues(string(last.class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(last.class)).Observe(delay.Seconds())

		s.logger.Debug().
			Err(last.err).
			Str("error_class", string(last.class)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := s.sleep(ctx, delay); err != nil {
			s.logger.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}

	retryExhaustedTotal.WithLabelValues(string(last.class)).Inc()
	s.logger.Warn().
		Err(last.err).
		Str("error_class", string(last.class)).
		Int("max_attempts", attempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, last.err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
