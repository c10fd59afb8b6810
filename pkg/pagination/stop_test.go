package pagination

import (
	"encoding/json"
	"testing"

	"github.com/Sternrassler/rest-ingest/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestStopCondition_Reached(t *testing.T) {
	raw := json.RawMessage(`{"done": false}`)

	tests := []struct {
		name    string
		cond    StopCondition
		pages   int
		records int
		want    bool
	}{
		{"unbounded", StopCondition{}, 100, 10000, false},
		{"page cap not reached", StopCondition{MaxPages: 3}, 2, 20, false},
		{"page cap reached", StopCondition{MaxPages: 3}, 3, 30, true},
		{"record cap reached", StopCondition{MaxRecords: 25}, 3, 30, true},
		{"record cap exact", StopCondition{MaxRecords: 30}, 3, 30, true},
		{"record cap not reached", StopCondition{MaxRecords: 31}, 3, 30, false},
		{"predicate true", StopCondition{Predicate: StopFunc(func(json.RawMessage) bool { return true })}, 1, 1, true},
		{"predicate false", StopCondition{Predicate: StopFunc(func(json.RawMessage) bool { return false })}, 1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Reached(raw, tt.pages, tt.records))
		})
	}
}

func TestFieldEquals(t *testing.T) {
	tests := []struct {
		name string
		pred FieldEquals
		raw  string
		want bool
	}{
		{"bool match", FieldEquals{Path: "meta.done", Value: true}, `{"meta":{"done":true}}`, true},
		{"bool mismatch", FieldEquals{Path: "meta.done", Value: true}, `{"meta":{"done":false}}`, false},
		{"int vs json number", FieldEquals{Path: "remaining", Value: 0}, `{"remaining":0}`, true},
		{"string match", FieldEquals{Path: "status", Value: "complete"}, `{"status":"complete"}`, true},
		{"absent with value", FieldEquals{Path: "status", Value: "complete"}, `{}`, false},
		{"nil matches absent", FieldEquals{Path: "next"}, `{}`, true},
		{"nil matches null", FieldEquals{Path: "next"}, `{"next":null}`, true},
		{"nil vs present", FieldEquals{Path: "next"}, `{"next":"x"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred.ShouldStop(json.RawMessage(tt.raw)))
		})
	}
}

func TestAnyOf(t *testing.T) {
	yes := StopFunc(func(json.RawMessage) bool { return true })
	no := StopFunc(func(json.RawMessage) bool { return false })

	assert.Nil(t, AnyOf())
	assert.Nil(t, AnyOf(nil, nil))
	assert.False(t, AnyOf(no, nil).ShouldStop(nil))
	assert.True(t, AnyOf(no, yes).ShouldStop(nil))
}

func TestNewStopCondition(t *testing.T) {
	limits := config.PageLimits{
		MaxPages: 4,
		StopWhen: &config.StopWhen{Path: "last", Equals: true},
	}
	cond := NewStopCondition(limits, nil)

	assert.Equal(t, 4, cond.MaxPages)
	assert.True(t, cond.Reached(json.RawMessage(`{"last":true}`), 1, 1))
	assert.False(t, cond.Reached(json.RawMessage(`{"last":false}`), 1, 1))

	extra := StopFunc(func(raw json.RawMessage) bool { return string(raw) == `{"x":1}` })
	cond = NewStopCondition(limits, extra)
	assert.True(t, cond.Reached(json.RawMessage(`{"x":1}`), 1, 1))
}
