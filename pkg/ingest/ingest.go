// Package ingest runs one ingestion job end to end: it builds the HTTP
// session, selects the pagination strategy, fetches every page and persists
// the records.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/rest-ingest/pkg/cache"
	"github.com/Sternrassler/rest-ingest/pkg/client"
	"github.com/Sternrassler/rest-ingest/pkg/config"
	"github.com/Sternrassler/rest-ingest/pkg/logging"
	"github.com/Sternrassler/rest-ingest/pkg/pagination"
	"github.com/Sternrassler/rest-ingest/pkg/ratelimit"
	"github.com/Sternrassler/rest-ingest/pkg/sink"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_runs_total",
		Help: "Total ingestion runs by strategy and result",
	}, []string{"strategy", "result"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_run_duration_seconds",
		Help:    "Duration of complete ingestion runs by strategy",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"strategy"})
)

// ErrUnknownPagination is returned when the job's pagination type has no strategy.
var ErrUnknownPagination = pagination.ErrUnknownPagination

// Result is the outcome of a successful run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string

	// Records are all fetched records in order.
	Records []json.RawMessage

	// Paths are the files written, in order.
	Paths []string

	// Dir is the output directory.
	Dir string

	// Keys are the uploaded object keys, when an upload policy is set.
	Keys []string
}

type options struct {
	httpClient client.Doer
	predicate  pagination.StopPredicate
	storage    sink.ObjectStorage
	redis      *redis.Client
	now        func() time.Time
	logger     *zerolog.Logger
}

// Option customizes a run.
type Option func(*options)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c client.Doer) Option {
	return func(o *options) { o.httpClient = c }
}

// WithStopPredicate adds a caller predicate to the job's stop condition.
func WithStopPredicate(p pagination.StopPredicate) Option {
	return func(o *options) { o.predicate = p }
}

// WithObjectStorage replaces the S3 client built from the upload policy.
func WithObjectStorage(s sink.ObjectStorage) Option {
	return func(o *options) { o.storage = s }
}

// WithRedis uses an existing Redis client for the page cache instead of
// dialing the job's cache address.
func WithRedis(c *redis.Client) Option {
	return func(o *options) { o.redis = c }
}

// WithClock sets the clock used for derived filenames.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the base logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// Run executes job. A fetch or write failure leaves no output files; an
// upload failure keeps the local files and returns an error.
func Run(ctx context.Context, job *config.IngestJob, opts ...Option) (*Result, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if job == nil {
		return nil, fmt.Errorf("%w: job is nil", config.ErrInvalidConfig)
	}
	if job.Pagination == nil {
		return nil, fmt.Errorf("%w: <nil>", ErrUnknownPagination)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	base := logging.NewLogger("ingest")
	if o.logger != nil {
		base = *o.logger
	}
	runID := uuid.NewString()
	logger := logging.WithRun(base, runID, job.Endpoint)
	strategyName := string(job.Pagination.Type())

	start := time.Now()
	defer func() {
		runDuration.WithLabelValues(strategyName).Observe(time.Since(start).Seconds())
	}()

	res, err := run(ctx, job, o, runID, logger)
	if err != nil {
		runsTotal.WithLabelValues(strategyName, "error").Inc()
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Ingestion failed")
		return nil, err
	}

	runsTotal.WithLabelValues(strategyName, "success").Inc()
	logger.Info().
		Int("records", len(res.Records)).
		Int("files", len(res.Paths)).
		Dur("duration", time.Since(start)).
		Msg("Ingestion complete")
	return res, nil
}

func run(ctx context.Context, job *config.IngestJob, o options, runID string, logger zerolog.Logger) (*Result, error) {
	cfg := client.ConfigFromJob(job)
	cfg.HTTPClient = o.httpClient
	cfg.RateLimiter = ratelimit.NewTracker(ratelimit.Config{
		RequestsPerSecond: job.RateLimit.RequestsPerSecond,
		Burst:             job.RateLimit.Burst,
		RespectHeaders:    job.RateLimit.RespectHeaders,
		MaxWait:           job.RateLimit.MaxWait,
	}, logger.With().Str("component", "ratelimit").Logger())

	if o.redis != nil || job.Cache.Enabled() {
		rdb := o.redis
		if rdb == nil {
			rdb = redis.NewClient(&redis.Options{
				Addr:     job.Cache.RedisAddr,
				Password: job.Cache.RedisPassword,
				DB:       job.Cache.RedisDB,
			})
			defer rdb.Close()
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Page cache unavailable, continuing without it")
		} else {
			ttl := job.Cache.TTL
			if ttl <= 0 {
				ttl = config.DefaultCacheTTL
			}
			cfg.Cache = cache.NewManager(rdb, ttl)
		}
	}

	session, err := client.NewSession(cfg, logger.With().Str("component", "client").Logger())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	strategy, err := pagination.New(job.Pagination, pagination.Env{
		Session:   session,
		Target:    pagination.TargetFromJob(job),
		Predicate: o.predicate,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Str("strategy", strategy.Name()).Msg("Starting ingestion")

	records, err := strategy.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", job.Endpoint, err)
	}

	writer := sink.NewWriter(job.Output, logger.With().Str("component", "sink").Logger())
	paths, err := writer.Write(records, job.Endpoint, o.now())
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}

	res := &Result{
		RunID:   runID,
		Records: records,
		Paths:   paths,
		Dir:     writer.Dir(),
	}

	if up := job.Output.Upload; up != nil && len(paths) > 0 {
		storage := o.storage
		if storage == nil {
			s3, err := sink.NewS3Storage(ctx, up)
			if err != nil {
				return nil, fmt.Errorf("upload: %w", err)
			}
			storage = s3
		}
		keys, err := sink.NewUploader(storage, up.Prefix, 0, logger.With().Str("component", "upload").Logger()).
			UploadAll(ctx, paths)
		if err != nil {
			return nil, fmt.Errorf("upload (local files kept in %s): %w", writer.Dir(), err)
		}
		res.Keys = keys
	}

	return res, nil
}
