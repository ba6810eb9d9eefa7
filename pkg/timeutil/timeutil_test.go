package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	assert.Equal(t, PeriodDay, ParsePeriod("day"))
	assert.Equal(t, PeriodWeek, ParsePeriod(" WEEK "))
	assert.Equal(t, PeriodMonth, ParsePeriod("month"))

	// Unknown values fall back to the weekly window.
	assert.Equal(t, PeriodWeek, ParsePeriod("fortnight"))
	assert.Equal(t, PeriodWeek, ParsePeriod(""))
}

func TestPeriodValid(t *testing.T) {
	assert.True(t, PeriodDay.Valid())
	assert.True(t, PeriodWeek.Valid())
	assert.True(t, PeriodMonth.Valid())
	assert.False(t, Period("fortnight").Valid())
	assert.False(t, Period("").Valid())
}

func TestWindowEndingNow(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	w := WindowEndingNow(PeriodDay, now)
	assert.Equal(t, now, w.To)
	assert.Equal(t, now.Add(-24*time.Hour), w.From)
}

func TestRangeContainsIsInclusive(t *testing.T) {
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	r := Range{From: from, To: to}

	assert.True(t, r.Contains(from))
	assert.True(t, r.Contains(to))
	assert.True(t, r.Contains(from.Add(time.Hour)))
	assert.False(t, r.Contains(from.Add(-time.Nanosecond)))
	assert.False(t, r.Contains(to.Add(time.Nanosecond)))
}

func TestPreviousWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	current := WindowEndingNow(PeriodWeek, now)

	prev := PreviousWindow(current)
	assert.Equal(t, current.From, prev.To)
	assert.Equal(t, current.To.Sub(current.From), prev.To.Sub(prev.From))
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("2026-03-10T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), got)

	// Sub-second precision and offsets normalize to UTC.
	got, err = ParseTimestamp("2026-03-10T14:00:00.5+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 500_000_000, time.UTC), got)

	_, err = ParseTimestamp("")
	assert.Error(t, err)
	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestStartAndEndOfDay(t *testing.T) {
	moment := time.Date(2026, 3, 10, 15, 42, 7, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), StartOfDay(moment))
	assert.Equal(t, time.Date(2026, 3, 10, 23, 59, 59, 999999999, time.UTC), EndOfDay(moment))
}
