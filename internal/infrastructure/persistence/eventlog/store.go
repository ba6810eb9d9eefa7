// Package eventlog implements the durable, append-only telemetry store and
// its in-memory query index.
//
// Persistence format: one JSON record per line (JSONL), each line
// independently parseable. Incremental writes are plain sequential appends;
// bulk rewrites (retention pruning, corruption compaction) go through a
// temp-file-then-atomic-rename cycle so a crash mid-rewrite never loses the
// previous state.
//
// Concurrency: all durable writes are serialized through a single writer
// goroutine, so two concurrent Record calls can never interleave partial
// lines. The in-memory index is updated synchronously before the durable
// append is queued, so a read immediately after a record may observe the
// event slightly before it is guaranteed durable. That weak-durability /
// strong-visibility tradeoff is deliberate.
package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/edupulse-insights/internal/domain/shared"
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/pkg/logger"
	"github.com/edupulse/edupulse-insights/pkg/timeutil"
)

const (
	logFileName   = "events.jsonl"
	tempFileName  = "events.jsonl.tmp"
	probeFileName = ".writable"
	lockFileName  = ".lock"

	// maxLineBytes caps a single JSONL record during load.
	maxLineBytes = 1 << 20

	// writeQueueSize bounds how many appends may be pending before Record
	// callers start waiting on the queue itself.
	writeQueueSize = 256
)

// ErrStoreClosed is returned by operations after Close.
var ErrStoreClosed = errors.New("eventlog: store closed")

// ErrStoreLocked is returned by Open when another process holds the storage
// directory. Two live stores on one directory would compact each other's
// appends away, so the second Open fails fast instead.
var ErrStoreLocked = errors.New("eventlog: storage dir locked by another process")

// Config holds store construction settings.
type Config struct {
	// Dir is the storage directory; created if missing.
	Dir string

	// RetentionDays is the retention window for client timestamps.
	RetentionDays int

	// Logger for structured logging.
	Logger *logger.Logger

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, RetentionDays: 90}
}

// Store is the file-backed telemetry.Log implementation.
type Store struct {
	dir       string
	path      string
	retention time.Duration
	log       *logger.Logger
	now       func() time.Time

	index *memoryIndex

	// lockFile holds the flock that makes this process the directory's only
	// writer; released on Close.
	lockFile *os.File

	// writeCh carries append and rewrite requests to the writer goroutine.
	// It is never closed; closeMu/closing gate every send so shutdown cannot
	// race a queued write.
	writeCh chan writeRequest
	closed  chan struct{}
	drained chan struct{}

	closeMu sync.RWMutex
	closing bool
}

// writeRequest is one unit of serialized durable work: either a single
// appended line, or a full-snapshot rewrite.
type writeRequest struct {
	line    []byte
	rewrite []telemetry.Event
	done    chan error
}

// Open loads (or creates) the store at cfg.Dir and starts the writer.
// Corrupt or truncated trailing records are skipped with a warning, expired
// events are filtered out, and the file is compacted when either happened.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("eventlog: storage dir is required")
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: create storage dir: %w", err)
	}

	lockFile, err := acquireDirLock(cfg.Dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:       cfg.Dir,
		path:      filepath.Join(cfg.Dir, logFileName),
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		log:       cfg.Logger.With(logger.Component("eventlog")),
		now:       cfg.Clock,
		index:     newMemoryIndex(),
		lockFile:  lockFile,
		writeCh:   make(chan writeRequest, writeQueueSize),
		closed:    make(chan struct{}),
		drained:   make(chan struct{}),
	}

	if err := s.load(); err != nil {
		releaseDirLock(lockFile)
		return nil, err
	}

	go s.writeLoop()
	return s, nil
}

// Record implements telemetry.Log. Validation failures drop the event
// silently (logged, no error) because telemetry must never fail the primary
// request path. The caller observes completion only after the durable append
// finished; a durable failure is logged and swallowed, leaving the event
// visible in the index for the current process.
func (s *Store) Record(ctx context.Context, ev telemetry.Event) (telemetry.Event, bool) {
	if err := ev.Validate(); err != nil {
		s.log.Warn("dropping invalid event", logger.EventKind(string(ev.Kind)), logger.Err(err))
		return telemetry.Event{}, false
	}
	if s.expired(ev.Timestamp) {
		s.log.Warn("dropping event outside retention window",
			logger.EventKind(string(ev.Kind)), logger.Time("timestamp", ev.Timestamp))
		return telemetry.Event{}, false
	}

	ev.ID = uuid.NewString()
	ev.RecordedAt = s.now().UTC()

	line, err := json.Marshal(&ev)
	if err != nil {
		// Payloads are plain data; this only fires on programmer error.
		s.log.Error("dropping unmarshalable event", logger.EventKind(string(ev.Kind)), logger.Err(err))
		return telemetry.Event{}, false
	}

	// Index first: visibility before durability.
	s.index.add(ev)

	req := writeRequest{line: line, done: make(chan error, 1)}
	if !s.enqueue(req) {
		s.log.Error("record after close; event lost on restart", logger.EventID(ev.ID))
		return ev, true
	}

	select {
	case err := <-req.done:
		if err != nil {
			s.log.Error("durable append failed; event remains in-memory only",
				logger.EventID(ev.ID), logger.Err(err))
		}
	case <-ctx.Done():
		// The write is still queued and will complete; the caller just
		// stopped waiting for durability.
	}

	return ev, true
}

// Query implements telemetry.Log.
func (s *Store) Query(r timeutil.Range, kinds ...telemetry.Kind) []telemetry.Event {
	return s.index.query(r, kinds...)
}

// Recent implements telemetry.Log.
func (s *Store) Recent(limit int, r timeutil.Range) []telemetry.Event {
	return s.index.recent(limit, r)
}

// ByActor implements telemetry.Log.
func (s *Store) ByActor(hash string) []telemetry.Event {
	return s.index.byActor(hash)
}

// Actors returns the distinct actor hashes currently indexed.
func (s *Store) Actors() []string {
	return s.index.actors()
}

// Size returns the number of indexed events.
func (s *Store) Size() int {
	return s.index.size()
}

// PurgeOld implements telemetry.Log: recompute the retained set and, when
// anything was dropped, atomically rewrite the durable store to reclaim
// space.
func (s *Store) PurgeOld(ctx context.Context) (int, error) {
	all := s.index.snapshot()
	retained := make([]telemetry.Event, 0, len(all))
	for i := range all {
		if !s.expired(all[i].Timestamp) {
			retained = append(retained, all[i])
		}
	}

	removed := len(all) - len(retained)
	if removed == 0 {
		return 0, nil
	}

	s.index.replaceAll(retained)

	req := writeRequest{rewrite: retained, done: make(chan error, 1)}
	if !s.enqueue(req) {
		return removed, ErrStoreClosed
	}

	select {
	case err := <-req.done:
		if err != nil {
			return removed, shared.WrapDomainError("telemetry", "PurgeOld", shared.ErrStorageUnavailable, "compaction failed", err)
		}
	case <-ctx.Done():
		return removed, ctx.Err()
	}

	s.log.Info("retention sweep compacted store",
		logger.Int("removed", removed), logger.Int("retained", len(retained)))
	return removed, nil
}

// IsWritable implements telemetry.Log: the storage directory exists and
// accepts appends.
func (s *Store) IsWritable() bool {
	if info, err := os.Stat(s.dir); err != nil || !info.IsDir() {
		return false
	}
	probe := filepath.Join(s.dir, probeFileName)
	f, err := os.OpenFile(probe, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}

// enqueue hands a request to the writer unless the store is closing. The read
// lock orders every send before Close flips the flag, so a request that was
// accepted is always drained.
func (s *Store) enqueue(req writeRequest) bool {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closing {
		return false
	}
	s.writeCh <- req
	return true
}

// Close drains pending writes, stops the writer goroutine and releases the
// directory lock. Safe to call more than once.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closing {
		s.closeMu.Unlock()
		return nil
	}
	s.closing = true
	s.closeMu.Unlock()

	close(s.closed)
	<-s.drained
	releaseDirLock(s.lockFile)
	return nil
}

// expired reports whether a client timestamp falls outside retention.
func (s *Store) expired(ts time.Time) bool {
	return ts.Before(s.now().UTC().Add(-s.retention))
}

// load reads the durable file into the index, skipping corrupt lines and
// expired events, and compacts the file when anything was dropped.
func (s *Store) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("eventlog: open store: %w", err)
	}
	defer f.Close()

	var (
		events  []telemetry.Event
		skipped int
		expired int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev telemetry.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			s.log.Warn("skipping corrupt record", logger.Int("line", lineNo), logger.Err(err))
			skipped++
			continue
		}
		if err := ev.Validate(); err != nil {
			s.log.Warn("skipping invalid record", logger.Int("line", lineNo), logger.Err(err))
			skipped++
			continue
		}
		if s.expired(ev.Timestamp) {
			expired++
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		// A truncated trailing record lands here; everything before it
		// already loaded.
		s.log.Warn("stopped loading at unreadable tail", logger.Int("line", lineNo), logger.Err(err))
		skipped++
	}

	s.index.replaceAll(events)

	if skipped > 0 || expired > 0 {
		s.log.Info("compacting store after load",
			logger.Int("loaded", len(events)), logger.Int("skipped", skipped), logger.Int("expired", expired))
		if err := s.rewrite(events); err != nil {
			return fmt.Errorf("eventlog: compact on load: %w", err)
		}
	}
	return nil
}

// writeLoop is the single writer: appends and rewrites apply strictly in
// queue order so durable lines never interleave. On close it drains
// everything already enqueued before exiting.
func (s *Store) writeLoop() {
	defer close(s.drained)
	for {
		select {
		case req := <-s.writeCh:
			s.serve(req)
		case <-s.closed:
			for {
				select {
				case req := <-s.writeCh:
					s.serve(req)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) serve(req writeRequest) {
	var err error
	if req.rewrite != nil {
		err = s.rewrite(req.rewrite)
	} else {
		err = s.append(req.line)
	}
	req.done <- err
}

// append adds one line to the durable file.
func (s *Store) append(line []byte) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// rewrite replaces the durable file with the given event set via
// write-temp-then-atomic-rename.
func (s *Store) rewrite(events []telemetry.Event) error {
	tmp := filepath.Join(s.dir, tempFileName)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for i := range events {
		line, err := json.Marshal(&events[i])
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}

// acquireDirLock takes an exclusive flock on the directory's lock file. The
// kernel releases the lock when the process dies, so a crash never leaves a
// stale lock behind.
func acquireDirLock(dir string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(dir, lockFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrStoreLocked, dir)
	}
	return f, nil
}

func releaseDirLock(f *os.File) {
	if f == nil {
		return
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	_ = f.Close()
}
