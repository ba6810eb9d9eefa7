package eventlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/pkg/timeutil"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func interactionAt(ts time.Time, hash, topic string) telemetry.Event {
	return telemetry.NewInteractionEvent(ts, telemetry.InteractionPayload{
		StudentHash: hash,
		Topic:       topic,
		Depth:       telemetry.DepthCore,
		Success:     true,
	})
}

func TestStore_RecordAssignsIDAndRecordedAt(t *testing.T) {
	s := openTestStore(t, t.TempDir())

	ev, ok := s.Record(context.Background(), interactionAt(time.Now(), "hash-1", "loops"))

	assert.True(t, ok)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.RecordedAt.IsZero())
	assert.Equal(t, 1, s.Size())
}

func TestStore_RecordDropsInvalidEvent(t *testing.T) {
	s := openTestStore(t, t.TempDir())

	// No payload at all.
	_, ok := s.Record(context.Background(), telemetry.Event{
		Kind:      telemetry.KindInteraction,
		Timestamp: time.Now(),
	})

	assert.False(t, ok)
	assert.Equal(t, 0, s.Size())
}

func TestStore_RecordDropsEventOutsideRetention(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.RetentionDays = 30
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Record(context.Background(), interactionAt(time.Now().AddDate(0, 0, -60), "hash-1", "loops"))

	assert.False(t, ok)
	assert.Equal(t, 0, s.Size())
}

func TestStore_QueryRangeIsInclusive(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	_, ok := s.Record(context.Background(), interactionAt(base.Add(-time.Hour), "h1", "loops"))
	require.True(t, ok)
	_, ok = s.Record(context.Background(), interactionAt(base, "h1", "loops"))
	require.True(t, ok)
	_, ok = s.Record(context.Background(), interactionAt(base.Add(time.Hour), "h1", "loops"))
	require.True(t, ok)

	got := s.Query(timeutil.Range{From: base.Add(-time.Hour), To: base})
	assert.Len(t, got, 2)
}

func TestStore_QueryFiltersByKind(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	now := time.Now()

	s.Record(context.Background(), interactionAt(now, "h1", "loops"))
	s.Record(context.Background(), telemetry.NewSystemErrorEvent(now, telemetry.SystemErrorPayload{
		Component: "llm-gateway",
		Message:   "timeout",
	}))

	errs := s.Query(timeutil.Range{}, telemetry.KindSystemError)
	require.Len(t, errs, 1)
	assert.Equal(t, telemetry.KindSystemError, errs[0].Kind)

	all := s.Query(timeutil.Range{})
	assert.Len(t, all, 2)
}

func TestStore_RecentReturnsNewestFirst(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	now := time.Now()

	s.Record(context.Background(), interactionAt(now.Add(-2*time.Minute), "h1", "first"))
	s.Record(context.Background(), interactionAt(now.Add(-time.Minute), "h1", "second"))
	s.Record(context.Background(), interactionAt(now, "h1", "third"))

	got := s.Recent(2, timeutil.Range{})
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Topic())
	assert.Equal(t, "second", got[1].Topic())
}

func TestStore_ByActorPreservesArrivalOrder(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	now := time.Now()

	s.Record(context.Background(), interactionAt(now, "alice", "loops"))
	s.Record(context.Background(), interactionAt(now, "bob", "loops"))
	s.Record(context.Background(), interactionAt(now, "alice", "recursion"))

	got := s.ByActor("alice")
	require.Len(t, got, 2)
	assert.Equal(t, "loops", got[0].Topic())
	assert.Equal(t, "recursion", got[1].Topic())

	assert.Empty(t, s.ByActor(""))
	assert.ElementsMatch(t, []string{"alice", "bob"}, s.Actors())
}

func TestStore_ReloadAfterRestart(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	s.Record(context.Background(), interactionAt(time.Now(), "h1", "loops"))
	s.Record(context.Background(), interactionAt(time.Now(), "h2", "recursion"))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, dir)
	assert.Equal(t, 2, reopened.Size())
	assert.Len(t, reopened.ByActor("h1"), 1)
}

func TestStore_LoadSkipsCorruptLinesAndCompacts(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	s.Record(context.Background(), interactionAt(time.Now(), "h1", "loops"))
	s.Record(context.Background(), interactionAt(time.Now(), "h2", "recursion"))
	require.NoError(t, s.Close())

	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json at all\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened := openTestStore(t, dir)
	assert.Equal(t, 2, reopened.Size())

	// Compaction rewrote the file without the corrupt line.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "not json")
}

func TestStore_PurgeOldRemovesExpiredEvents(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig(t.TempDir())
	cfg.RetentionDays = 90
	cfg.Clock = func() time.Time { return now }

	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Record(context.Background(), interactionAt(now.AddDate(0, 0, -80), "h1", "loops"))
	require.True(t, ok)
	_, ok = s.Record(context.Background(), interactionAt(now, "h2", "recursion"))
	require.True(t, ok)

	// Nothing expired yet.
	removed, err := s.PurgeOld(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, removed)

	// Advance the clock past the older event's retention horizon.
	now = now.AddDate(0, 0, 30)
	removed, err = s.PurgeOld(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Size())
	assert.Empty(t, s.ByActor("h1"))
}

func TestStore_IsWritable(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	assert.True(t, s.IsWritable())
}

func TestStore_SecondOpenOnSameDirFails(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	s.Record(context.Background(), interactionAt(time.Now(), "h1", "loops"))

	// A second store on the same directory would compact away the first
	// store's appends from a stale snapshot; it must not come up at all.
	_, err = Open(DefaultConfig(dir))
	assert.ErrorIs(t, err, ErrStoreLocked)

	require.NoError(t, s.Close())

	reopened := openTestStore(t, dir)
	assert.Equal(t, 1, reopened.Size())
}

func TestStore_RecordAfterCloseDoesNotPanic(t *testing.T) {
	s, err := Open(DefaultConfig(t.TempDir()))
	require.NoError(t, err)

	_, ok := s.Record(context.Background(), interactionAt(time.Now(), "h1", "loops"))
	require.True(t, ok)
	require.NoError(t, s.Close())

	assert.NotPanics(t, func() {
		for i := 0; i < 32; i++ {
			ev, ok := s.Record(context.Background(), interactionAt(time.Now(), "h1", "loops"))
			assert.True(t, ok)
			assert.NotEmpty(t, ev.ID)
		}
	})

	_, err = s.PurgeOld(context.Background())
	assert.NoError(t, err)
}

func TestStore_CloseIsIdempotent(t *testing.T) {
	s, err := Open(DefaultConfig(t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.NotPanics(t, func() {
		assert.NoError(t, s.Close())
	})
}

func TestStore_OpenRequiresDir(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
