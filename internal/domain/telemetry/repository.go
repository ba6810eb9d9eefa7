package telemetry

import (
	"context"

	"github.com/edupulse/edupulse-insights/pkg/timeutil"
)

// Log is the port for the append-only event store. Implementations own both
// durable persistence and the in-memory index that serves reads.
//
// Record applies the silent-drop policy for validation failures: a malformed
// event is logged and discarded without surfacing an error, because telemetry
// must never block the primary request path. Durable-write failures are also
// swallowed (the event stays visible in memory for the current process).
type Log interface {
	// Record validates and appends an event. The returned event carries the
	// assigned ID and RecordedAt; ok is false when the event was dropped.
	Record(ctx context.Context, ev Event) (recorded Event, ok bool)

	// Query returns all events whose client timestamp lies in the inclusive
	// range and whose kind is in kinds (all kinds when empty). Reads hit the
	// in-memory index only and never block writers.
	Query(r timeutil.Range, kinds ...Kind) []Event

	// Recent returns up to limit events from the range, newest first by
	// arrival order.
	Recent(limit int, r timeutil.Range) []Event

	// ByActor returns the full ordered history for one actor hash. This is
	// the input the progress engine replays.
	ByActor(hash string) []Event

	// PurgeOld drops events older than the retention window and, if anything
	// was dropped, rewrites the durable store atomically.
	PurgeOld(ctx context.Context) (removed int, err error)

	// IsWritable probes that the storage directory exists and accepts appends.
	IsWritable() bool
}
