/*
Package store defines document persistence for the ledger engine.

PURPOSE:
  The unit of persistence is the whole document, keyed by sync id. A
  revision number rides along with every load and must be echoed back on
  save; a mismatch means another writer got there first and the caller
  must reload and replay.

INTERFACES:
  DocumentStore: Load / Save / Delete of whole documents with optimistic
  revision checks

SEE ALSO:
  - store/memory: in-memory implementation for tests and dev
  - store/sqlite: durable implementation
  - syncer: debounced write-behind on top of a DocumentStore
*/
package store

import (
	"context"

	"github.com/sitebook/ledger-engine/ledger"
)

// Revision is a monotonically increasing per-document save counter.
// Revision zero means "document does not exist yet".
type Revision int64

// DocumentStore persists whole ledger documents with optimistic
// concurrency control.
type DocumentStore interface {
	// Load returns the document and its current revision.
	// Returns ledger.ErrDocumentNotFound when the sync id is unknown.
	Load(ctx context.Context, syncID string) (ledger.Document, Revision, error)

	// Save writes the document if the stored revision still equals
	// expected, and returns the new revision. Pass zero to create.
	// Returns ledger.ErrRevisionConflict on a mismatch.
	Save(ctx context.Context, syncID string, doc ledger.Document, expected Revision) (Revision, error)

	// Delete removes the document. Deleting an unknown sync id returns
	// ledger.ErrDocumentNotFound.
	Delete(ctx context.Context, syncID string) error

	Close() error
}
