package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Document mirrors the external job document. It is a union of every
// convention's fields; Parse turns it into the typed IngestJob.
type Document struct {
	BaseURL     string            `yaml:"base_url"`
	Endpoint    string            `yaml:"endpoint"`
	Method      string            `yaml:"method"`
	Headers     map[string]string `yaml:"headers"`
	Params      map[string]any    `yaml:"params"`
	Body        any               `yaml:"body"`
	Auth        []string          `yaml:"auth"`
	BearerToken string            `yaml:"bearer_token"`
	APIKey      *APIKeyDocument   `yaml:"api_key"`
	UserAgent   string            `yaml:"user_agent"`
	Timeout     *float64          `yaml:"timeout"`
	VerifySSL   *bool             `yaml:"verify_ssl"`

	Pagination PaginationDocument `yaml:"pagination"`

	OutputDir      string          `yaml:"output_dir"`
	OutputFilename string          `yaml:"output_filename"`
	SaveMode       string          `yaml:"save_mode"`
	BatchSize      int             `yaml:"batch_size"`
	Upload         *UploadDocument `yaml:"upload"`

	Retry     *RetryDocument     `yaml:"retry"`
	RateLimit *RateLimitDocument `yaml:"rate_limit"`
	Cache     *CacheDocument     `yaml:"cache"`
}

// APIKeyDocument is the api_key block.
type APIKeyDocument struct {
	Header string `yaml:"header"`
	Value  string `yaml:"value"`
}

// PaginationDocument is the pagination block.
type PaginationDocument struct {
	Type          string            `yaml:"type"`
	PageSize      int               `yaml:"page_size"`
	OffsetParam   string            `yaml:"offset_param"`
	LimitParam    string            `yaml:"limit_param"`
	PageParam     string            `yaml:"page_param"`
	PageSizeParam string            `yaml:"page_size_param"`
	StartPage     int               `yaml:"start_page"`
	CursorParam   string            `yaml:"cursor_param"`
	CursorPath    string            `yaml:"cursor_path"`
	NextURLPath   string            `yaml:"next_url_path"`
	LinkHeader    string            `yaml:"link_header"`
	DataPath      string            `yaml:"data_path"`
	MaxPages      int               `yaml:"max_pages"`
	MaxRecords    int               `yaml:"max_records"`
	StopWhen      *StopWhenDocument `yaml:"stop_when"`
}

// StopWhenDocument is the pagination.stop_when block.
type StopWhenDocument struct {
	Path   string `yaml:"path"`
	Equals any    `yaml:"equals"`
}

// UploadDocument is the upload block.
type UploadDocument struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// RetryDocument is the retry block.
type RetryDocument struct {
	MaxRetries      *int     `yaml:"max_retries"`
	BackoffFactor   *float64 `yaml:"backoff_factor"`
	MaxBackoff      *float64 `yaml:"max_backoff"`
	StatusForcelist []int    `yaml:"status_forcelist"`
}

// RateLimitDocument is the rate_limit block.
type RateLimitDocument struct {
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	RespectHeaders    *bool    `yaml:"respect_headers"`
	MaxWait           *float64 `yaml:"max_wait"`
}

// CacheDocument is the cache block.
type CacheDocument struct {
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	TTL           *float64 `yaml:"ttl"`
}

// Load reads a job document from path, applies INGEST_* environment
// overrides and returns the validated job.
func Load(path string) (*IngestJob, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidConfig, path, err)
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, err
	}

	applyEnv(doc, envOverrides())

	return Parse(doc)
}

// Decode reads a YAML or JSON job document. Unknown keys are ignored.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read document: %v", ErrInvalidConfig, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, invalidf("empty document")
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse document: %v", ErrInvalidConfig, err)
	}
	return &doc, nil
}

// envOverrides returns a viper instance resolving INGEST_* variables, e.g.
// INGEST_BEARER_TOKEN or INGEST_UPLOAD_SECRET_KEY.
func envOverrides() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func applyEnv(doc *Document, v *viper.Viper) {
	set := func(key string, dst *string) {
		if val := v.GetString(key); val != "" {
			*dst = val
		}
	}

	set("base_url", &doc.BaseURL)
	set("bearer_token", &doc.BearerToken)
	set("output_dir", &doc.OutputDir)

	user, pass := v.GetString("auth.username"), v.GetString("auth.password")
	if user != "" || pass != "" {
		doc.Auth = []string{user, pass}
	}

	if key := v.GetString("api_key.value"); key != "" {
		if doc.APIKey == nil {
			doc.APIKey = &APIKeyDocument{}
		}
		doc.APIKey.Value = key
	}
	if doc.Upload != nil {
		set("upload.access_key", &doc.Upload.AccessKey)
		set("upload.secret_key", &doc.Upload.SecretKey)
	}
	if doc.Cache != nil {
		set("cache.redis_password", &doc.Cache.RedisPassword)
	}
}

// Parse converts a decoded document into a validated IngestJob.
func Parse(doc *Document) (*IngestJob, error) {
	if doc == nil {
		return nil, invalidf("document is nil")
	}

	job := &IngestJob{
		BaseURL:     strings.TrimSpace(doc.BaseURL),
		Endpoint:    doc.Endpoint,
		Method:      strings.ToUpper(strings.TrimSpace(doc.Method)),
		Headers:     doc.Headers,
		Body:        doc.Body,
		BearerToken: doc.BearerToken,
		UserAgent:   doc.UserAgent,
		Timeout:     DefaultTimeout,
		VerifySSL:   true,
		Retry:       DefaultRetryPolicy(),
		RateLimit: RateLimitPolicy{
			Burst:          1,
			RespectHeaders: true,
			MaxWait:        DefaultMaxWait,
		},
		Output: PersistencePolicy{
			Dir:       doc.OutputDir,
			Filename:  doc.OutputFilename,
			Mode:      SaveMode(strings.ToLower(doc.SaveMode)),
			BatchSize: doc.BatchSize,
		},
	}

	if job.Method == "" {
		job.Method = DefaultMethod
	}
	if job.UserAgent == "" {
		job.UserAgent = DefaultUserAgent
	}
	if doc.Timeout != nil {
		if *doc.Timeout <= 0 {
			return nil, invalidf("timeout must be > 0 (got %v)", *doc.Timeout)
		}
		job.Timeout = seconds(*doc.Timeout)
	}
	if doc.VerifySSL != nil {
		job.VerifySSL = *doc.VerifySSL
	}

	params, err := stringParams(doc.Params)
	if err != nil {
		return nil, err
	}
	job.Params = params

	if doc.Auth != nil {
		if len(doc.Auth) != 2 {
			return nil, invalidf("auth must be a [username, password] pair (got %d elements)", len(doc.Auth))
		}
		job.Auth = &BasicAuth{Username: doc.Auth[0], Password: doc.Auth[1]}
	}
	if doc.APIKey != nil && doc.APIKey.Value != "" {
		header := doc.APIKey.Header
		if header == "" {
			header = "X-API-Key"
		}
		job.APIKey = &APIKey{Header: header, Value: doc.APIKey.Value}
	}

	if job.Output.Dir == "" {
		job.Output.Dir = DefaultOutputDir
	}
	if job.Output.Mode == "" {
		job.Output.Mode = SaveSingle
	}
	if job.Output.BatchSize == 0 {
		job.Output.BatchSize = DefaultBatchSize
	}
	if u := doc.Upload; u != nil {
		job.Output.Upload = &UploadPolicy{
			Bucket:    u.Bucket,
			Prefix:    u.Prefix,
			Region:    u.Region,
			Endpoint:  u.Endpoint,
			AccessKey: u.AccessKey,
			SecretKey: u.SecretKey,
		}
	}

	if r := doc.Retry; r != nil {
		if r.MaxRetries != nil {
			job.Retry.MaxRetries = *r.MaxRetries
		}
		if r.BackoffFactor != nil {
			job.Retry.BackoffFactor = *r.BackoffFactor
		}
		if r.MaxBackoff != nil {
			job.Retry.MaxBackoff = seconds(*r.MaxBackoff)
		}
		if r.StatusForcelist != nil {
			job.Retry.StatusForcelist = r.StatusForcelist
		}
	}

	if rl := doc.RateLimit; rl != nil {
		job.RateLimit.RequestsPerSecond = rl.RequestsPerSecond
		if rl.Burst > 0 {
			job.RateLimit.Burst = rl.Burst
		}
		if rl.RespectHeaders != nil {
			job.RateLimit.RespectHeaders = *rl.RespectHeaders
		}
		if rl.MaxWait != nil {
			job.RateLimit.MaxWait = seconds(*rl.MaxWait)
		}
	}

	if c := doc.Cache; c != nil && c.RedisAddr != "" {
		job.Cache = CachePolicy{
			RedisAddr:     c.RedisAddr,
			RedisPassword: c.RedisPassword,
			RedisDB:       c.RedisDB,
			TTL:           DefaultCacheTTL,
		}
		if c.TTL != nil {
			job.Cache.TTL = seconds(*c.TTL)
		}
	}

	pagination, err := parsePagination(doc.Pagination)
	if err != nil {
		return nil, err
	}
	job.Pagination = pagination

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func parsePagination(doc PaginationDocument) (Pagination, error) {
	limits := PageLimits{
		DataPath:   doc.DataPath,
		MaxPages:   doc.MaxPages,
		MaxRecords: doc.MaxRecords,
	}
	if doc.StopWhen != nil {
		limits.StopWhen = &StopWhen{Path: doc.StopWhen.Path, Equals: doc.StopWhen.Equals}
	}

	pageSize := orInt(doc.PageSize, 100)

	switch PaginationType(strings.ToLower(strings.TrimSpace(doc.Type))) {
	case "", TypeNone:
		return NoPagination{PageLimits: limits}, nil
	case TypeOffsetLimit:
		return OffsetLimit{
			PageLimits:  limits,
			PageSize:    pageSize,
			OffsetParam: orString(doc.OffsetParam, "offset"),
			LimitParam:  orString(doc.LimitParam, "limit"),
		}, nil
	case TypePageNumber:
		return PageNumber{
			PageLimits:    limits,
			PageSize:      pageSize,
			PageParam:     orString(doc.PageParam, "page"),
			PageSizeParam: orString(doc.PageSizeParam, "page_size"),
			StartPage:     orInt(doc.StartPage, 1),
		}, nil
	case TypeCursor:
		return Cursor{
			PageLimits:  limits,
			CursorParam: orString(doc.CursorParam, "cursor"),
			CursorPath:  orString(doc.CursorPath, "next_cursor"),
			PageSize:    doc.PageSize,
			LimitParam:  doc.LimitParam,
		}, nil
	case TypeNextURL:
		return NextURL{
			PageLimits:  limits,
			NextURLPath: orString(doc.NextURLPath, "next"),
		}, nil
	case TypeLinkHeader:
		return LinkHeader{
			PageLimits: limits,
			HeaderName: orString(doc.LinkHeader, "Link"),
		}, nil
	default:
		return nil, invalidf("unknown pagination type %q", doc.Type)
	}
}

func stringParams(in map[string]any) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		case int, int64, float64, bool:
			out[k] = fmt.Sprint(val)
		default:
			return nil, invalidf("params.%s must be a scalar (got %T)", k, v)
		}
	}
	return out, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// IsInvalid reports whether err is a configuration error.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
