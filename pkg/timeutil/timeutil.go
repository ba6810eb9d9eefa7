// Package timeutil provides reporting-period helpers for EduPulse Insights.
// All analytics windows are computed in UTC so that aggregates are stable
// regardless of where the service or its callers run.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// Period is a reporting time window used for aggregation.
type Period string

const (
	// PeriodDay covers the last 24 hours.
	PeriodDay Period = "day"
	// PeriodWeek covers the last 7 days.
	PeriodWeek Period = "week"
	// PeriodMonth covers the last 30 days.
	PeriodMonth Period = "month"
)

// ParsePeriod parses a string into a Period, defaulting to PeriodWeek.
func ParsePeriod(s string) Period {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case PeriodDay:
		return PeriodDay
	case PeriodWeek:
		return PeriodWeek
	case PeriodMonth:
		return PeriodMonth
	default:
		return PeriodWeek
	}
}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// Duration returns the length of the period.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodDay:
		return 24 * time.Hour
	case PeriodMonth:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// Range is an inclusive [From, To] time window.
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range, boundaries included.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.From.UTC().Format(time.RFC3339), r.To.UTC().Format(time.RFC3339))
}

// WindowEndingNow returns the range covering the period and ending at now.
func WindowEndingNow(p Period, now time.Time) Range {
	now = now.UTC()
	return Range{From: now.Add(-p.Duration()), To: now}
}

// PreviousWindow returns the window of the same length immediately preceding r.
// Used for period-over-period trend comparisons.
func PreviousWindow(r Range) Range {
	length := r.To.Sub(r.From)
	return Range{From: r.From.Add(-length), To: r.From}
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// DaysAgo returns the instant the given number of days before now, in UTC.
func DaysAgo(days int, now time.Time) time.Time {
	return now.UTC().AddDate(0, 0, -days)
}

// FormatTimestamp renders t in the canonical wire format used by the event log.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a client-supplied event timestamp. It accepts RFC3339
// with or without sub-second precision. Anything else is a validation error.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timeutil: empty timestamp")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timeutil: unparsable timestamp %q", s)
}
