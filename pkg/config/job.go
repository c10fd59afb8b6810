// Package config holds the typed model of an ingestion job and the parser that
// builds it from a declarative YAML or JSON document.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// SaveMode selects how records are written to disk.
type SaveMode string

const (
	// SaveSingle writes all records into one file.
	SaveSingle SaveMode = "single"

	// SaveBatch writes consecutive chunks of BatchSize records, one file each.
	SaveBatch SaveMode = "batch"
)

// Defaults applied by the parser when a field is omitted.
const (
	DefaultMethod        = http.MethodGet
	DefaultTimeout       = 30 * time.Second
	DefaultOutputDir     = "data"
	DefaultBatchSize     = 1000
	DefaultMaxRetries    = 3
	DefaultBackoffFactor = 0.3
	DefaultMaxBackoff    = 30 * time.Second
	DefaultUserAgent     = "rest-ingest/0.1.0"
	DefaultCacheTTL      = 5 * time.Minute
	DefaultMaxWait       = 60 * time.Second
)

// DefaultStatusForcelist is the set of statuses retried with backoff.
var DefaultStatusForcelist = []int{429, 500, 502, 503, 504}

// IngestJob is the complete description of one ingestion run.
// It is built once by the parser and never mutated afterwards.
type IngestJob struct {
	// BaseURL is the scheme and host (plus optional path prefix) of the API.
	BaseURL string

	// Endpoint is the path joined onto BaseURL for the first request.
	Endpoint string

	Method  string
	Headers map[string]string
	Params  map[string]string

	// Body is sent as JSON when non-nil.
	Body any

	Auth        *BasicAuth
	BearerToken string
	APIKey      *APIKey
	UserAgent   string

	// Timeout bounds each individual HTTP request.
	Timeout   time.Duration
	VerifySSL bool

	Pagination Pagination
	Output     PersistencePolicy
	Retry      RetryPolicy
	RateLimit  RateLimitPolicy
	Cache      CachePolicy
}

// BasicAuth is a username/password pair sent with HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// APIKey is a static credential sent in a request header.
type APIKey struct {
	Header string
	Value  string
}

// PersistencePolicy controls where and how fetched records are written.
type PersistencePolicy struct {
	Dir string

	// Filename overrides the derived "<endpoint>_<timestamp>.json" name.
	Filename string

	Mode      SaveMode
	BatchSize int

	// Upload, when set, copies written files to S3-compatible storage.
	Upload *UploadPolicy
}

// UploadPolicy configures the optional object-storage upload of output files.
type UploadPolicy struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// RetryPolicy configures retries of failed HTTP attempts.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BackoffFactor is the base delay in seconds; retry n waits factor * 2^(n-1).
	BackoffFactor float64

	MaxBackoff time.Duration

	// StatusForcelist lists the HTTP statuses that are retried.
	StatusForcelist []int
}

// ShouldRetryStatus reports whether status is in the forcelist.
func (p RetryPolicy) ShouldRetryStatus(status int) bool {
	for _, s := range p.StatusForcelist {
		if s == status {
			return true
		}
	}
	return false
}

// DefaultRetryPolicy returns the retry policy used when a document omits one.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      DefaultMaxRetries,
		BackoffFactor:   DefaultBackoffFactor,
		MaxBackoff:      DefaultMaxBackoff,
		StatusForcelist: append([]int(nil), DefaultStatusForcelist...),
	}
}

// RateLimitPolicy paces requests on the client side.
type RateLimitPolicy struct {
	// RequestsPerSecond of 0 disables the token bucket.
	RequestsPerSecond float64
	Burst             int

	// RespectHeaders honours X-RateLimit-Remaining/Reset and Retry-After.
	RespectHeaders bool

	// MaxWait caps any single header-driven wait.
	MaxWait time.Duration
}

// CachePolicy enables the Redis page cache for GET requests.
type CachePolicy struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// Enabled reports whether a Redis address is configured.
func (c CachePolicy) Enabled() bool {
	return c.RedisAddr != ""
}

// Validate checks the invariants the parser relies on. It is also useful for
// jobs constructed in code.
func (j *IngestJob) Validate() error {
	if strings.TrimSpace(j.BaseURL) == "" {
		return invalidf("base_url is required")
	}
	if !strings.HasPrefix(j.BaseURL, "http://") && !strings.HasPrefix(j.BaseURL, "https://") {
		return invalidf("base_url must be an http(s) URL, got %q", j.BaseURL)
	}
	if j.Pagination == nil {
		return invalidf("pagination is required")
	}
	if err := j.Pagination.validate(); err != nil {
		return err
	}
	switch j.Output.Mode {
	case SaveSingle, "":
	case SaveBatch:
		if j.Output.BatchSize <= 0 {
			return invalidf("batch_size must be > 0 in batch mode (got %d)", j.Output.BatchSize)
		}
	default:
		return invalidf("unknown save_mode %q (want single or batch)", j.Output.Mode)
	}
	if j.Retry.MaxRetries < 0 {
		return invalidf("retry.max_retries must be >= 0 (got %d)", j.Retry.MaxRetries)
	}
	if j.Output.Upload != nil && j.Output.Upload.Bucket == "" {
		return invalidf("upload.bucket is required when upload is configured")
	}
	return nil
}
