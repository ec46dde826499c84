// Package memory provides an in-memory DocumentStore for tests and dev.
package memory

import (
	"context"
	"sync"

	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/store"
)

type record struct {
	doc      ledger.Document
	revision store.Revision
}

// Store keeps documents in a map. Documents are cloned on the way in and
// out so callers can never alias stored state.
type Store struct {
	mu   sync.RWMutex
	docs map[string]record
}

func New() *Store {
	return &Store{docs: make(map[string]record)}
}

func (s *Store) Load(_ context.Context, syncID string) (ledger.Document, store.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[syncID]
	if !ok {
		return ledger.Document{}, 0, ledger.ErrDocumentNotFound
	}
	return rec.doc.Clone(), rec.revision, nil
}

func (s *Store) Save(_ context.Context, syncID string, doc ledger.Document, expected store.Revision) (store.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := store.Revision(0)
	if rec, ok := s.docs[syncID]; ok {
		current = rec.revision
	}
	if current != expected {
		return 0, ledger.ErrRevisionConflict
	}

	next := current + 1
	s.docs[syncID] = record{doc: doc.Clone(), revision: next}
	return next, nil
}

func (s *Store) Delete(_ context.Context, syncID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[syncID]; !ok {
		return ledger.ErrDocumentNotFound
	}
	delete(s.docs, syncID)
	return nil
}

func (s *Store) Close() error { return nil }
