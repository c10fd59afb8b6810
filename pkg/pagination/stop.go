package pagination

import (
	"encoding/json"
	"reflect"

	"github.com/Sternrassler/rest-ingest/pkg/config"
	"github.com/Sternrassler/rest-ingest/pkg/extract"
)

// StopPredicate inspects a raw page and reports whether the loop should end
// after it.
type StopPredicate interface {
	ShouldStop(raw json.RawMessage) bool
}

// StopFunc adapts a function to StopPredicate.
type StopFunc func(raw json.RawMessage) bool

// ShouldStop calls f(raw).
func (f StopFunc) ShouldStop(raw json.RawMessage) bool { return f(raw) }

// FieldEquals stops when the value at Path equals Value. A nil Value matches
// an absent or null field.
type FieldEquals struct {
	Path  string
	Value any
}

// ShouldStop implements StopPredicate.
func (p FieldEquals) ShouldStop(raw json.RawMessage) bool {
	v, ok := extract.Lookup(raw, p.Path)
	if !ok {
		return p.Value == nil
	}
	var got any
	if err := json.Unmarshal(v, &got); err != nil {
		return false
	}
	want, ok := normalize(p.Value)
	if !ok {
		return false
	}
	return reflect.DeepEqual(got, want)
}

// normalize round-trips v through JSON so YAML ints compare equal to JSON
// numbers.
func normalize(v any) (any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

type anyOf []StopPredicate

func (a anyOf) ShouldStop(raw json.RawMessage) bool {
	for _, p := range a {
		if p.ShouldStop(raw) {
			return true
		}
	}
	return false
}

// AnyOf stops when any of preds does. Nil predicates are ignored; AnyOf
// returns nil when none remain.
func AnyOf(preds ...StopPredicate) StopPredicate {
	var out anyOf
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// StopCondition is evaluated once per page, after the page's records have
// been accumulated.
type StopCondition struct {
	// MaxPages and MaxRecords of 0 are unbounded.
	MaxPages   int
	MaxRecords int
	Predicate  StopPredicate
}

// NewStopCondition builds the condition for a job's limits, combining its
// declarative stop_when with an optional caller predicate.
func NewStopCondition(limits config.PageLimits, extra StopPredicate) StopCondition {
	var declared StopPredicate
	if limits.StopWhen != nil {
		declared = FieldEquals{Path: limits.StopWhen.Path, Value: limits.StopWhen.Equals}
	}
	return StopCondition{
		MaxPages:   limits.MaxPages,
		MaxRecords: limits.MaxRecords,
		Predicate:  AnyOf(declared, extra),
	}
}

// Reached reports whether the loop must end after the page just accumulated.
// pages and records are the totals including that page.
func (c StopCondition) Reached(raw json.RawMessage, pages, records int) bool {
	if c.MaxPages > 0 && pages >= c.MaxPages {
		return true
	}
	if c.MaxRecords > 0 && records >= c.MaxRecords {
		return true
	}
	return c.Predicate != nil && c.Predicate.ShouldStop(raw)
}

// reason names the condition that fired, for logging.
func (c StopCondition) reason(pages, records int) string {
	switch {
	case c.MaxPages > 0 && pages >= c.MaxPages:
		return "max_pages"
	case c.MaxRecords > 0 && records >= c.MaxRecords:
		return "max_records"
	default:
		return "predicate"
	}
}
