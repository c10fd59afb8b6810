package pagination

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/Sternrassler/rest-ingest/pkg/client"
	"github.com/Sternrassler/rest-ingest/pkg/config"
	"github.com/Sternrassler/rest-ingest/pkg/extract"
)

// None issues a single request.
type None struct {
	loop
}

// NewNone creates the single-request strategy.
func NewNone(p config.NoPagination, env Env) *None {
	return &None{loop: newLoop(p.Type(), p.Limits(), env)}
}

// Fetch implements Strategy.
func (s *None) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	return s.run(ctx, &singlePager{loop: &s.loop})
}

type singlePager struct {
	loop *loop
}

func (p *singlePager) request() *client.Request {
	return p.loop.first(p.loop.params())
}

func (p *singlePager) advance(*client.Response, json.RawMessage, int) bool { return false }

// OffsetLimit advances an offset by the page size until a short page.
type OffsetLimit struct {
	loop
	cfg config.OffsetLimit
}

// NewOffsetLimit creates the offset/limit strategy.
func NewOffsetLimit(p config.OffsetLimit, env Env) *OffsetLimit {
	return &OffsetLimit{loop: newLoop(p.Type(), p.Limits(), env), cfg: p}
}

// Fetch implements Strategy.
func (s *OffsetLimit) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	return s.run(ctx, &offsetPager{s: s})
}

type offsetPager struct {
	s      *OffsetLimit
	offset int
}

func (p *offsetPager) request() *client.Request {
	q := p.s.params()
	q.Set(p.s.cfg.OffsetParam, strconv.Itoa(p.offset))
	q.Set(p.s.cfg.LimitParam, strconv.Itoa(p.s.cfg.PageSize))
	return p.s.first(q)
}

func (p *offsetPager) advance(_ *client.Response, _ json.RawMessage, n int) bool {
	if n < p.s.cfg.PageSize {
		return false
	}
	p.offset += p.s.cfg.PageSize
	return true
}

// PageNumber advances a page number until a short page.
type PageNumber struct {
	loop
	cfg config.PageNumber
}

// NewPageNumber creates the page-number strategy.
func NewPageNumber(p config.PageNumber, env Env) *PageNumber {
	if p.StartPage == 0 {
		p.StartPage = 1
	}
	return &PageNumber{loop: newLoop(p.Type(), p.Limits(), env), cfg: p}
}

// Fetch implements Strategy.
func (s *PageNumber) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	return s.run(ctx, &pageNumberPager{s: s, page: s.cfg.StartPage})
}

type pageNumberPager struct {
	s    *PageNumber
	page int
}

func (p *pageNumberPager) request() *client.Request {
	q := p.s.params()
	q.Set(p.s.cfg.PageParam, strconv.Itoa(p.page))
	if p.s.cfg.PageSizeParam != "" {
		q.Set(p.s.cfg.PageSizeParam, strconv.Itoa(p.s.cfg.PageSize))
	}
	return p.s.first(q)
}

func (p *pageNumberPager) advance(_ *client.Response, _ json.RawMessage, n int) bool {
	if n < p.s.cfg.PageSize {
		return false
	}
	p.page++
	return true
}

// Cursor follows an opaque token read from each response.
type Cursor struct {
	loop
	cfg config.Cursor
}

// NewCursor creates the cursor strategy.
func NewCursor(p config.Cursor, env Env) *Cursor {
	return &Cursor{loop: newLoop(p.Type(), p.Limits(), env), cfg: p}
}

// Fetch implements Strategy.
func (s *Cursor) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	return s.run(ctx, &cursorPager{s: s})
}

type cursorPager struct {
	s      *Cursor
	cursor string
}

// The cursor parameter is sent on every request, empty on the first.
func (p *cursorPager) request() *client.Request {
	q := p.s.params()
	q.Set(p.s.cfg.CursorParam, p.cursor)
	if p.s.cfg.PageSize > 0 && p.s.cfg.LimitParam != "" {
		q.Set(p.s.cfg.LimitParam, strconv.Itoa(p.s.cfg.PageSize))
	}
	return p.s.first(q)
}

func (p *cursorPager) advance(_ *client.Response, raw json.RawMessage, _ int) bool {
	next := extract.String(raw, p.s.cfg.CursorPath)
	if next == "" {
		return false
	}
	p.cursor = next
	return true
}

// NextURL follows a URL read from each response body.
type NextURL struct {
	loop
	cfg config.NextURL
}

// NewNextURL creates the next-URL strategy.
func NewNextURL(p config.NextURL, env Env) *NextURL {
	return &NextURL{loop: newLoop(p.Type(), p.Limits(), env), cfg: p}
}

// Fetch implements Strategy.
func (s *NextURL) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	return s.run(ctx, &nextURLPager{s: s})
}

type nextURLPager struct {
	s    *NextURL
	next string // empty until the first response
}

func (p *nextURLPager) request() *client.Request {
	if p.next == "" {
		return p.s.first(p.s.params())
	}
	return p.s.follow(p.next)
}

func (p *nextURLPager) advance(_ *client.Response, raw json.RawMessage, _ int) bool {
	next := extract.String(raw, p.s.cfg.NextURLPath)
	if next == "" {
		return false
	}
	p.next = p.s.resolve(next)
	return true
}

// LinkHeader follows the rel="next" entry of a response header.
type LinkHeader struct {
	loop
	cfg config.LinkHeader
}

// NewLinkHeader creates the Link-header strategy.
func NewLinkHeader(p config.LinkHeader, env Env) *LinkHeader {
	if p.HeaderName == "" {
		p.HeaderName = "Link"
	}
	return &LinkHeader{loop: newLoop(p.Type(), p.Limits(), env), cfg: p}
}

// Fetch implements Strategy.
func (s *LinkHeader) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	return s.run(ctx, &linkPager{s: s})
}

type linkPager struct {
	s    *LinkHeader
	next string
}

func (p *linkPager) request() *client.Request {
	if p.next == "" {
		return p.s.first(p.s.params())
	}
	return p.s.follow(p.next)
}

func (p *linkPager) advance(resp *client.Response, _ json.RawMessage, _ int) bool {
	next, ok := NextLink(resp.Header.Values(p.s.cfg.HeaderName)...)
	if !ok {
		return false
	}
	p.next = p.s.resolve(next)
	return true
}
