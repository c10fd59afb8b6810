// Package client provides the HTTP session used for every page of an
// ingestion run: URL joining, authentication, static headers, pacing,
// an optional page cache and retry with exponential backoff.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/rest-ingest/pkg/cache"
	"github.com/Sternrassler/rest-ingest/pkg/config"
	"github.com/Sternrassler/rest-ingest/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for session requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_requests_total",
		Help: "Total HTTP requests by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_request_duration_seconds",
		Help:    "HTTP request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_errors_total",
		Help: "Total failed attempts by error class",
	}, []string{"class"})
)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the session configuration.
type Config struct {
	BaseURL     string
	Headers     map[string]string
	Auth        *config.BasicAuth
	BearerToken string
	APIKey      *config.APIKey
	UserAgent   string
	Timeout     time.Duration
	VerifySSL   bool
	Retry       config.RetryPolicy

	// HTTPClient overrides the default *http.Client built from Timeout and VerifySSL.
	HTTPClient Doer

	// RateLimiter paces attempts. Optional.
	RateLimiter *ratelimit.Tracker

	// Cache stores successful GET pages. Optional.
	Cache *cache.Manager
}

// ConfigFromJob copies the request-level settings of a job.
func ConfigFromJob(job *config.IngestJob) Config {
	return Config{
		BaseURL:     job.BaseURL,
		Headers:     job.Headers,
		Auth:        job.Auth,
		BearerToken: job.BearerToken,
		APIKey:      job.APIKey,
		UserAgent:   job.UserAgent,
		Timeout:     job.Timeout,
		VerifySSL:   job.VerifySSL,
		Retry:       job.Retry,
	}
}

// Request is one logical request. URL is either absolute or a path joined
// onto the base URL. Query values are merged into any query already on URL.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Body   any
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string

	// Cached is true when the response was served from the page cache.
	Cached bool
}

// Session issues requests for one job. It is used sequentially by a single
// strategy loop and never mutates its configuration.
type Session struct {
	cfg        Config
	base       *url.URL
	credential string
	httpClient Doer
	logger     zerolog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewSession creates a session.
func NewSession(cfg Config, logger zerolog.Logger) (*Session, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient(cfg.Timeout, cfg.VerifySSL)
	}

	s := &Session{
		cfg:        cfg,
		base:       base,
		httpClient: httpClient,
		logger:     logger,
		sleep:      sleepCtx,
	}
	s.credential = s.credentialFingerprint()
	return s, nil
}

func defaultHTTPClient(timeout time.Duration, verifySSL bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// ResolveURL turns a request URL into an absolute URL. Absolute URLs are
// returned unchanged; anything else is joined onto the base URL path, and its
// query is merged into the base query.
func (s *Session) ResolveURL(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if r.IsAbs() {
		return r, nil
	}
	if r.Path == "" && r.RawQuery == "" {
		u := *s.base
		return &u, nil
	}

	u := s.base
	if r.Path != "" {
		u = u.JoinPath(r.EscapedPath())
		if !strings.HasPrefix(u.Path, "/") {
			u.Path = "/" + u.Path
			u.RawPath = ""
		}
	} else {
		c := *u
		u = &c
	}
	if r.RawQuery != "" {
		q := u.Query()
		for k, vs := range r.Query() {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// Do performs a request with pacing, caching and retries. A 2xx response is
// returned in full; any other outcome is an error.
func (s *Session) Do(ctx context.Context, req *Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := s.ResolveURL(req.URL)
	if err != nil {
		return nil, fmt.Errorf("resolve url %q: %w", req.URL, err)
	}
	if len(req.Query) > 0 {
		q := target.Query()
		for k, v := range req.Query {
			q[k] = v
		}
		target.RawQuery = q.Encode()
	}

	var payload []byte
	if req.Body != nil {
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	cacheKey, cacheable := s.cacheKey(method, target)
	if cacheable {
		entry, err := s.cfg.Cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			s.logger.Debug().Str("url", target.String()).Msg("Page served from cache")
			return &Response{
				StatusCode: entry.StatusCode,
				Header:     entry.Headers,
				Body:       entry.Data,
				URL:        target.String(),
				Cached:     true,
			}, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			s.logger.Warn().Err(err).Str("url", target.String()).Msg("Cache get error")
		}
	}

	var resp *Response
	err = s.retryWithBackoff(ctx, func(attempt int) outcome {
		r, out := s.attempt(ctx, method, target, payload, attempt)
		resp = r
		return out
	})
	if err != nil {
		return nil, err
	}

	if cacheable {
		entry := cache.NewEntry(resp.StatusCode, resp.Header, resp.Body, s.cfg.Cache.TTL())
		if err := s.cfg.Cache.Set(ctx, cacheKey, entry); err != nil {
			s.logger.Warn().Err(err).Str("url", resp.URL).Msg("Failed to cache page")
		}
	}

	return resp, nil
}

// attempt sends the request once and classifies the result.
func (s *Session) attempt(ctx context.Context, method string, target *url.URL, payload []byte, attempt int) (*Response, outcome) {
	if s.cfg.RateLimiter != nil {
		if err := s.cfg.RateLimiter.Wait(ctx); err != nil {
			return nil, outcome{err: fmt.Errorf("%w: %v", ErrContextCancelled, err)}
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, outcome{err: fmt.Errorf("create request: %w", err)}
	}
	s.applyHeaders(httpReq, payload != nil)

	s.logger.Debug().
		Str("method", method).
		Str("url", target.String()).
		Int("attempt", attempt).
		Msg("Executing request")

	start := time.Now()
	httpResp, err := s.httpClient.Do(httpReq)
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, outcome{err: fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())}
		}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(method, "network_error").Inc()
		s.logger.Warn().Err(err).Str("url", target.String()).Int("attempt", attempt).Msg("HTTP request failed")
		return nil, outcome{
			err:       &TransportError{URL: target.String(), Err: err},
			class:     ErrorClassNetwork,
			retryable: true,
		}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, outcome{
			err:       &TransportError{URL: target.String(), Err: fmt.Errorf("read body: %w", err)},
			class:     ErrorClassNetwork,
			retryable: true,
		}
	}

	requestsTotal.WithLabelValues(method, strconv.Itoa(httpResp.StatusCode)).Inc()
	if s.cfg.RateLimiter != nil {
		s.cfg.RateLimiter.UpdateFromHeaders(httpResp.Header)
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return &Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       data,
			URL:        target.String(),
		}, outcome{}
	}

	class := classifyStatus(httpResp.StatusCode)
	errorsTotal.WithLabelValues(string(class)).Inc()
	s.logger.Warn().
		Str("url", target.String()).
		Int("status", httpResp.StatusCode).
		Str("error_class", string(class)).
		Int("attempt", attempt).
		Msg("Request error")

	out := outcome{
		err:       &HTTPError{StatusCode: httpResp.StatusCode, Body: data, URL: target.String()},
		class:     class,
		retryable: s.cfg.Retry.ShouldRetryStatus(httpResp.StatusCode),
	}
	if d, ok := ratelimit.RetryAfter(httpResp.Header, time.Now()); ok {
		out.retryAfter = d
	}
	return nil, out
}

func (s *Session) applyHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	switch {
	case s.cfg.Auth != nil:
		req.SetBasicAuth(s.cfg.Auth.Username, s.cfg.Auth.Password)
	case s.cfg.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+s.cfg.BearerToken)
	}
	if s.cfg.APIKey != nil && s.cfg.APIKey.Value != "" {
		req.Header.Set(s.cfg.APIKey.Header, s.cfg.APIKey.Value)
	}
}

func (s *Session) cacheKey(method string, target *url.URL) (cache.CacheKey, bool) {
	if s.cfg.Cache == nil || method != http.MethodGet {
		return cache.CacheKey{}, false
	}
	u := *target
	u.RawQuery = ""
	return cache.CacheKey{
		Method:     method,
		URL:        u.String(),
		Query:      target.Query(),
		Credential: s.credential,
	}, true
}

// credentialFingerprint hashes the credential headers the session sends.
// Anonymous sessions give "".
func (s *Session) credentialFingerprint() string {
	req := &http.Request{Header: http.Header{}}
	s.applyHeaders(req, false)

	names := []string{"Authorization", "Cookie"}
	if s.cfg.APIKey != nil && s.cfg.APIKey.Header != "" {
		names = append(names, s.cfg.APIKey.Header)
	}

	h := sha256.New()
	found := false
	for _, name := range names {
		v := req.Header.Get(name)
		if v == "" {
			continue
		}
		found = true
		fmt.Fprintf(h, "%s=%s\n", http.CanonicalHeaderKey(name), v)
	}
	if !found {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Fetch performs a request and returns the body as a JSON document. A body
// that is not valid JSON is logged and returned as nil, which callers treat
// as an empty page.
func (s *Session) Fetch(ctx context.Context, req *Request) (json.RawMessage, error) {
	resp, err := s.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Decode(resp), nil
}

// Decode returns the response body as a JSON document, or nil if it is not JSON.
func (s *Session) Decode(resp *Response) json.RawMessage {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 || !json.Valid(body) {
		s.logger.Warn().
			Str("url", resp.URL).
			Int("status", resp.StatusCode).
			Int("bytes", len(resp.Body)).
			Msg("Response body is not JSON, treating as empty page")
		return nil
	}
	return json.RawMessage(body)
}
