/*
Package syncer provides debounced write-behind persistence for ledger
documents.

PURPOSE:
  Every command application replaces the in-memory document; writing each
  replacement straight through would hammer the store during bursts of
  edits. The syncer coalesces: Enqueue records the newest snapshot and
  (re)arms a debounce timer, and only the latest snapshot at flush time is
  written. The in-memory document is the source of truth - a failed flush
  never rolls it back.

STICKY ERROR:
  A flush failure is remembered as a SyncError and surfaced on Status
  until a later flush succeeds. The UI uses it to show an out-of-sync
  badge; it is advisory, never a gate on further edits.

SHUTDOWN:
  Flush forces a synchronous write of any pending snapshot; Close flushes
  and stops the timers. Both are safe to call with nothing pending.

SEE ALSO:
  - store/docstore.go: the DocumentStore being written to
  - api/handlers.go: the enqueue call sites
*/
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/store"
)

// Syncer debounces document writes to a DocumentStore, one stream per
// sync id.
type Syncer struct {
	store    store.DocumentStore
	debounce time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	streams map[string]*stream
	closed  bool
}

// stream is the per-sync-id write-behind state. All fields are guarded by
// the owning Syncer's mutex. seq orders snapshots within a stream:
// committedSeq only ever grows, so a save that lost a race against a newer
// snapshot can neither be retried nor put back.
type stream struct {
	pending      *ledger.Document
	pendingSeq   uint64
	seq          uint64
	committedSeq uint64
	timer        *time.Timer
	revision     store.Revision
	lastErr      error
	lastSync     time.Time
}

// Status reports a document's persistence state.
type Status struct {
	SyncID     string
	Revision   store.Revision
	Pending    bool
	LastSyncAt time.Time
	LastError  error
}

func New(st store.DocumentStore, debounce time.Duration, log zerolog.Logger) *Syncer {
	return &Syncer{
		store:    st,
		debounce: debounce,
		log:      log,
		streams:  make(map[string]*stream),
	}
}

// Track seeds the revision for a sync id, typically right after loading
// the document from the store.
func (s *Syncer) Track(syncID string, revision store.Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamLocked(syncID).revision = revision
}

// Enqueue records doc as the pending snapshot for syncID and arms the
// debounce timer. A newer Enqueue before the timer fires replaces the
// snapshot and restarts the window.
func (s *Syncer) Enqueue(syncID string, doc ledger.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	st := s.streamLocked(syncID)
	snap := doc.Clone()
	st.pending = &snap
	st.seq++
	st.pendingSeq = st.seq

	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(s.debounce, func() {
		if err := s.Flush(context.Background(), syncID); err != nil {
			s.log.Error().Err(err).Str("syncId", syncID).Msg("background flush failed")
		}
	})
}

// Flush synchronously writes the pending snapshot for syncID, if any.
// A store failure becomes the stream's sticky error; success clears it.
func (s *Syncer) Flush(ctx context.Context, syncID string) error {
	s.mu.Lock()
	st, ok := s.streams[syncID]
	if !ok || st.pending == nil {
		s.mu.Unlock()
		return nil
	}
	if st.pendingSeq <= st.committedSeq {
		// Stale leftover from a save that lost a race; drop it.
		st.pending = nil
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		s.mu.Unlock()
		return nil
	}
	snap := *st.pending
	seq := st.pendingSeq
	st.pending = nil
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	expected := st.revision
	s.mu.Unlock()

	rev, err := s.store.Save(ctx, syncID, snap, expected)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= st.committedSeq {
		// A newer snapshot was committed while this save was in flight;
		// whatever happened to the stale save is moot.
		return nil
	}
	if err != nil {
		// Put the snapshot back unless a newer one arrived while saving.
		if st.pending == nil {
			st.pending = &snap
			st.pendingSeq = seq
		}
		st.lastErr = &ledger.SyncError{SyncID: syncID, Err: err}
		return st.lastErr
	}

	st.committedSeq = seq
	st.revision = rev
	st.lastErr = nil
	st.lastSync = time.Now().UTC()
	s.log.Debug().Str("syncId", syncID).Int64("revision", int64(rev)).Msg("document flushed")
	return nil
}

// FlushAll flushes every stream; the first error is returned but every
// stream is attempted.
func (s *Syncer) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var first error
	for _, id := range ids {
		if err := s.Flush(ctx, id); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Status reports the persistence state of a sync id.
func (s *Syncer) Status(syncID string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Status{SyncID: syncID}
	if st, ok := s.streams[syncID]; ok {
		out.Revision = st.revision
		out.Pending = st.pending != nil
		out.LastSyncAt = st.lastSync
		out.LastError = st.lastErr
	}
	return out
}

// Close flushes all pending snapshots and stops accepting new ones.
func (s *Syncer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, st := range s.streams {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
	s.mu.Unlock()
	return s.FlushAll(ctx)
}

func (s *Syncer) streamLocked(syncID string) *stream {
	st, ok := s.streams[syncID]
	if !ok {
		st = &stream{}
		s.streams[syncID] = st
	}
	return st
}
