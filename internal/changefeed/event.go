// Package changefeed delivers row-level change events from the database to subscribers.
package changefeed

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// EventType is the row operation that produced an event.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
)

// Event is one row change. Record holds the row after the change.
// Key is set instead of Record when the row was too large to send inline.
type Event struct {
	Table      string          `json:"table"`
	Type       EventType       `json:"type"`
	Record     json.RawMessage `json:"record"`
	Key        string          `json:"key,omitempty"`
	CommitTime time.Time       `json:"commit_timestamp"`
}

// NewEvent marshals row into an event.
func NewEvent(table string, typ EventType, row any) (Event, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return Event{}, errors.Wrapf(err, "marshal %s row", table)
	}
	return Event{Table: table, Type: typ, Record: raw, CommitTime: time.Now().UTC()}, nil
}

// Decode unmarshals the record into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Record, v)
}

// Filter selects events of one table, optionally narrowed to rows where Column equals Value.
// The zero Type matches every operation.
type Filter struct {
	Table  string
	Type   EventType
	Column string
	Value  string
}

// ParseFilter reads a "column=eq.value" expression.
func ParseFilter(table, expr string) (Filter, error) {
	f := Filter{Table: table}
	if expr == "" {
		return f, nil
	}
	col, rest, ok := strings.Cut(expr, "=")
	if !ok || !strings.HasPrefix(rest, "eq.") || col == "" {
		return Filter{}, errors.Errorf("unsupported filter %q", expr)
	}
	f.Column = col
	f.Value = strings.TrimPrefix(rest, "eq.")
	return f, nil
}

func (f Filter) String() string {
	s := f.Table
	if f.Column != "" {
		s += ":" + f.Column + "=eq." + f.Value
	}
	return s
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.Type != "" && f.Type != e.Type {
		return false
	}
	if f.Column == "" {
		return true
	}
	var row map[string]any
	if err := json.Unmarshal(e.Record, &row); err != nil {
		return false
	}
	v, ok := row[f.Column]
	if !ok || v == nil {
		return false
	}
	return cast.ToString(v) == f.Value
}
