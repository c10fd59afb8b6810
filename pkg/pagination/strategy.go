package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/rest-ingest/pkg/client"
	"github.com/Sternrassler/rest-ingest/pkg/config"
	"github.com/Sternrassler/rest-ingest/pkg/extract"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the page loop.
var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_pages_total",
		Help: "Total non-empty pages fetched by strategy",
	}, []string{"strategy"})

	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_records_total",
		Help: "Total records accumulated by strategy",
	}, []string{"strategy"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_fetch_duration_seconds",
		Help:    "Duration of a complete Fetch by strategy",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"strategy"})
)

// ErrUnknownPagination is returned for a pagination type with no strategy.
var ErrUnknownPagination = errors.New("unknown pagination type")

// Strategy fetches every page of one endpoint.
type Strategy interface {
	// Fetch runs the page loop and returns all accumulated records in order.
	Fetch(ctx context.Context) ([]json.RawMessage, error)

	// Name returns the pagination type tag.
	Name() string
}

// Target is the request every strategy starts from.
type Target struct {
	BaseURL  string
	Endpoint string
	Method   string
	Params   map[string]string
	Body     any
}

// TargetFromJob copies the request settings of a job.
func TargetFromJob(job *config.IngestJob) Target {
	return Target{
		BaseURL:  job.BaseURL,
		Endpoint: job.Endpoint,
		Method:   job.Method,
		Params:   job.Params,
		Body:     job.Body,
	}
}

// Env carries what every strategy needs besides its own settings.
type Env struct {
	Session *client.Session
	Target  Target

	// Predicate is an optional caller stop predicate, combined with stop_when.
	Predicate StopPredicate

	Logger zerolog.Logger
}

// New returns the strategy for p.
func New(p config.Pagination, env Env) (Strategy, error) {
	if env.Session == nil {
		return nil, fmt.Errorf("pagination: session is required")
	}
	switch p := p.(type) {
	case config.NoPagination:
		return NewNone(p, env), nil
	case config.OffsetLimit:
		return NewOffsetLimit(p, env), nil
	case config.PageNumber:
		return NewPageNumber(p, env), nil
	case config.Cursor:
		return NewCursor(p, env), nil
	case config.NextURL:
		return NewNextURL(p, env), nil
	case config.LinkHeader:
		return NewLinkHeader(p, env), nil
	case nil:
		return nil, fmt.Errorf("%w: <nil>", ErrUnknownPagination)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPagination, p.Type())
	}
}

// pager is the per-Fetch position of one convention.
type pager interface {
	// request builds the request for the current position.
	request() *client.Request

	// advance moves to the next position and reports whether there is one.
	// n is the number of records the page yielded.
	advance(resp *client.Response, raw json.RawMessage, n int) bool
}

// loop is the page loop shared by all strategies.
type loop struct {
	name     string
	env      Env
	dataPath string
	stop     StopCondition
	logger   zerolog.Logger
}

func newLoop(typ config.PaginationType, limits config.PageLimits, env Env) loop {
	return loop{
		name:     string(typ),
		env:      env,
		dataPath: limits.DataPath,
		stop:     NewStopCondition(limits, env.Predicate),
		logger:   env.Logger.With().Str("strategy", string(typ)).Logger(),
	}
}

// Name returns the pagination type tag.
func (l *loop) Name() string { return l.name }

// params returns the job's static query parameters as a fresh url.Values.
func (l *loop) params() url.Values {
	q := url.Values{}
	for k, v := range l.env.Target.Params {
		q.Set(k, v)
	}
	return q
}

// first returns the first request of every convention.
func (l *loop) first(q url.Values) *client.Request {
	return &client.Request{
		Method: l.env.Target.Method,
		URL:    l.env.Target.Endpoint,
		Query:  q,
		Body:   l.env.Target.Body,
	}
}

// follow returns a request for a server-provided URL; the URL carries the state.
func (l *loop) follow(next string) *client.Request {
	return &client.Request{
		Method: l.env.Target.Method,
		URL:    next,
		Body:   l.env.Target.Body,
	}
}

// resolve makes a server-provided next URL absolute against the base URL.
func (l *loop) resolve(next string) string {
	ref, err := url.Parse(next)
	if err != nil || ref.IsAbs() {
		return next
	}
	base, err := url.Parse(l.env.Target.BaseURL)
	if err != nil {
		return next
	}
	return base.ResolveReference(ref).String()
}

func (l *loop) run(ctx context.Context, p pager) ([]json.RawMessage, error) {
	start := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(l.name).Observe(time.Since(start).Seconds())
	}()

	records := []json.RawMessage{}
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", client.ErrContextCancelled, err)
		}

		req := p.request()
		resp, err := l.env.Session.Do(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%s: page %d: %w", l.name, pages+1, err)
		}

		raw := l.env.Session.Decode(resp)
		page := extract.Records(raw, l.dataPath)
		if len(page) == 0 {
			l.logger.Debug().
				Int("page", pages+1).
				Str("url", resp.URL).
				Msg("Empty page, stopping")
			break
		}

		records = append(records, page...)
		pages++
		pagesTotal.WithLabelValues(l.name).Inc()
		recordsTotal.WithLabelValues(l.name).Add(float64(len(page)))

		l.logger.Debug().
			Int("page", pages).
			Int("page_records", len(page)).
			Int("total_records", len(records)).
			Str("url", resp.URL).
			Bool("cached", resp.Cached).
			Msg("Page fetched")

		if l.stop.Reached(raw, pages, len(records)) {
			l.logger.Debug().
				Int("page", pages).
				Str("reason", l.stop.reason(pages, len(records))).
				Msg("Stop condition reached")
			break
		}

		if !p.advance(resp, raw, len(page)) {
			break
		}
	}

	l.logger.Info().
		Int("pages", pages).
		Int("total_records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return records, nil
}
