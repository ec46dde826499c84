/*
Package sqlite provides a SQLite-backed DocumentStore.

PURPOSE:
  Persists whole ledger documents as JSON, one row per sync id, with an
  optimistic revision counter. The document is the unit of consistency,
  so there is no relational schema beyond the envelope - the same pattern
  works on PostgreSQL with only dialect changes.

SCHEMA:
  documents:
    sync_id    TEXT PRIMARY KEY
    revision   INTEGER  -- bumped on every save; save requires a match
    doc_json   TEXT     -- the serialized document
    updated_at TEXT

CONCURRENCY:
  The revision check and the write happen inside one transaction, so two
  concurrent savers cannot both succeed against the same revision. SQLite
  is opened in WAL mode so readers do not block the writer.

USAGE:
  st, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/docstore.go: interface definition
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sitebook/ledger-engine/ledger"
	"github.com/sitebook/ledger-engine/store"
)

// Store implements store.DocumentStore using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a SQLite document store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		sync_id    TEXT PRIMARY KEY,
		revision   INTEGER NOT NULL,
		doc_json   TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Load(ctx context.Context, syncID string) (ledger.Document, store.Revision, error) {
	var (
		revision int64
		docJSON  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT revision, doc_json FROM documents WHERE sync_id = ?`, syncID,
	).Scan(&revision, &docJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Document{}, 0, ledger.ErrDocumentNotFound
	}
	if err != nil {
		return ledger.Document{}, 0, fmt.Errorf("failed to load document: %w", err)
	}

	var doc ledger.Document
	if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
		return ledger.Document{}, 0, fmt.Errorf("failed to decode document %q: %w", syncID, err)
	}
	return doc, store.Revision(revision), nil
}

func (s *Store) Save(ctx context.Context, syncID string, doc ledger.Document, expected store.Revision) (store.Revision, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to encode document: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT revision FROM documents WHERE sync_id = ?`, syncID,
	).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = 0
	case err != nil:
		return 0, fmt.Errorf("failed to read revision: %w", err)
	}

	if store.Revision(current) != expected {
		return 0, ledger.ErrRevisionConflict
	}

	next := current + 1
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if current == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (sync_id, revision, doc_json, updated_at) VALUES (?, ?, ?, ?)`,
			syncID, next, string(docJSON), now)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET revision = ?, doc_json = ?, updated_at = ? WHERE sync_id = ? AND revision = ?`,
			next, string(docJSON), now, syncID, current)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return store.Revision(next), nil
}

func (s *Store) Delete(ctx context.Context, syncID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE sync_id = ?`, syncID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrDocumentNotFound
	}
	return nil
}
