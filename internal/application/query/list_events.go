package query

import (
	"context"
	"fmt"
	"time"

	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST EVENTS QUERY
// Raw event listing for the ingest API's read side. Served straight from the
// in-memory index without caching; the index read is already cheap and the
// raw feed must not lag behind a TTL.
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// ListEventsQuery selects a slice of the log.
type ListEventsQuery struct {
	// Period selects the trailing window. Ignored when From/To are set.
	Period string

	// From / To bound the window explicitly (RFC 3339 wire strings).
	From string
	To   string

	// Kinds filters by event kind; empty means all kinds.
	Kinds []string

	// Limit caps the result, newest first.
	Limit int
}

// Validate normalizes the query.
func (q *ListEventsQuery) Validate() error {
	if q.Limit <= 0 {
		q.Limit = defaultEventLimit
	}
	if q.Limit > maxEventLimit {
		q.Limit = maxEventLimit
	}
	if q.Period == "" {
		q.Period = string(timeutil.PeriodDay)
	}
	if !timeutil.Period(q.Period).Valid() {
		return fmt.Errorf("list_events: unknown period %q", q.Period)
	}
	for _, k := range q.Kinds {
		if _, err := telemetry.ParseKind(k); err != nil {
			return fmt.Errorf("list_events: %w", err)
		}
	}
	return nil
}

// EventList is the result of listing events.
type EventList struct {
	From   time.Time         `json:"from"`
	To     time.Time         `json:"to"`
	Count  int               `json:"count"`
	Events []telemetry.Event `json:"events"`
}

// ListEventsHandler handles the ListEventsQuery.
type ListEventsHandler struct {
	log telemetry.Log
	now func() time.Time
}

// NewListEventsHandler creates a new ListEventsHandler.
func NewListEventsHandler(log telemetry.Log) *ListEventsHandler {
	return &ListEventsHandler{log: log, now: time.Now}
}

// Handle executes the list events query.
func (h *ListEventsHandler) Handle(_ context.Context, q ListEventsQuery) (*EventList, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	window, err := h.window(q)
	if err != nil {
		return nil, err
	}

	var events []telemetry.Event
	if len(q.Kinds) == 0 {
		events = h.log.Recent(q.Limit, window)
	} else {
		kinds := make([]telemetry.Kind, 0, len(q.Kinds))
		for _, k := range q.Kinds {
			kind, _ := telemetry.ParseKind(k)
			kinds = append(kinds, kind)
		}
		// Query returns arrival order; keep the newest tail and flip it so
		// the filtered branch orders the same way Recent does.
		events = h.log.Query(window, kinds...)
		if len(events) > q.Limit {
			events = events[len(events)-q.Limit:]
		}
		reversed := make([]telemetry.Event, len(events))
		for i, ev := range events {
			reversed[len(events)-1-i] = ev
		}
		events = reversed
	}

	return &EventList{
		From:   window.From,
		To:     window.To,
		Count:  len(events),
		Events: events,
	}, nil
}

func (h *ListEventsHandler) window(q ListEventsQuery) (timeutil.Range, error) {
	if q.From == "" && q.To == "" {
		return timeutil.WindowEndingNow(timeutil.ParsePeriod(q.Period), h.now().UTC()), nil
	}

	var r timeutil.Range
	var err error
	if q.From != "" {
		if r.From, err = timeutil.ParseTimestamp(q.From); err != nil {
			return r, fmt.Errorf("list_events: bad from: %w", err)
		}
	}
	r.To = h.now().UTC()
	if q.To != "" {
		if r.To, err = timeutil.ParseTimestamp(q.To); err != nil {
			return r, fmt.Errorf("list_events: bad to: %w", err)
		}
	}
	return r, nil
}
