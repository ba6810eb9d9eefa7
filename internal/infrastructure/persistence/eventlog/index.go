package eventlog

import (
	"sync"

	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/pkg/timeutil"
)

// memoryIndex is the in-memory mirror of the durable log. It serves every
// read so queries never touch storage or block the writer. Events are held
// in arrival order; the index and the durable store converge to the same
// event set after any restart.
type memoryIndex struct {
	mu     sync.RWMutex
	events []telemetry.Event
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{events: make([]telemetry.Event, 0, 256)}
}

// add appends an event in arrival order.
func (ix *memoryIndex) add(ev telemetry.Event) {
	ix.mu.Lock()
	ix.events = append(ix.events, ev)
	ix.mu.Unlock()
}

// replaceAll swaps the full event set, used on load and after retention
// sweeps.
func (ix *memoryIndex) replaceAll(events []telemetry.Event) {
	ix.mu.Lock()
	ix.events = events
	ix.mu.Unlock()
}

// size returns the number of indexed events.
func (ix *memoryIndex) size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.events)
}

// query returns events whose client timestamp lies in the inclusive range
// and whose kind matches the filter (all kinds when empty), in arrival order.
func (ix *memoryIndex) query(r timeutil.Range, kinds ...telemetry.Kind) []telemetry.Event {
	want := kindSet(kinds)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]telemetry.Event, 0)
	for i := range ix.events {
		ev := &ix.events[i]
		if want != nil && !want[ev.Kind] {
			continue
		}
		if !r.IsZero() && !r.Contains(ev.Timestamp) {
			continue
		}
		out = append(out, *ev)
	}
	return out
}

// recent returns up to limit events from the range, newest arrival first.
func (ix *memoryIndex) recent(limit int, r timeutil.Range) []telemetry.Event {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]telemetry.Event, 0, limit)
	for i := len(ix.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		ev := &ix.events[i]
		if !r.IsZero() && !r.Contains(ev.Timestamp) {
			continue
		}
		out = append(out, *ev)
	}
	return out
}

// byActor returns the full history for one actor hash, in arrival order.
// This is what the progress engine replays.
func (ix *memoryIndex) byActor(hash string) []telemetry.Event {
	if hash == "" {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]telemetry.Event, 0)
	for i := range ix.events {
		if ix.events[i].StudentHash() == hash {
			out = append(out, ix.events[i])
		}
	}
	return out
}

// actors returns the distinct actor hashes present in the index.
func (ix *memoryIndex) actors() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := range ix.events {
		hash := ix.events[i].StudentHash()
		if hash == "" {
			continue
		}
		if _, ok := seen[hash]; !ok {
			seen[hash] = struct{}{}
			out = append(out, hash)
		}
	}
	return out
}

// snapshot copies the current event set in arrival order.
func (ix *memoryIndex) snapshot() []telemetry.Event {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]telemetry.Event, len(ix.events))
	copy(out, ix.events)
	return out
}

func kindSet(kinds []telemetry.Kind) map[telemetry.Kind]bool {
	if len(kinds) == 0 {
		return nil
	}
	set := make(map[telemetry.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}
