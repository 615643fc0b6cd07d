// Package store implements the persistent record store: named collections
// of JSON documents, one document per entity id, with insert / get /
// versioned-update / list-by-predicate semantics.
//
// Backed by SQLite in WAL mode so concurrent access to distinct keys is
// safe. Updates are optimistic: every document carries a version and an
// update must present the version it read, otherwise ErrConflict. This is
// the guard against two callers racing on the same pipeline record.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is swapped in tests for deterministic timestamps.
var timeNow = time.Now

// Collection names. Each is an independent keyspace of JSON documents.
const (
	Findings    = "findings"
	Consensus   = "consensus"
	Proposals   = "proposals"
	Escalations = "escalations"
	Decisions   = "decisions"
	Policies    = "policies"
	Pipelines   = "pipelines"
	Approvals   = "approvals"
	Targets     = "targets"
	Scorecards  = "scorecards"
	Plans       = "plans"
	PRs         = "prs"
	Releases    = "releases"
)

// Sentinel errors callers branch on.
var (
	// ErrNotFound: no document with that id in the collection.
	ErrNotFound = errors.New("store: document not found")
	// ErrExists: insert collided with an existing id.
	ErrExists = errors.New("store: document already exists")
	// ErrConflict: versioned update lost a race; re-read and retry.
	ErrConflict = errors.New("store: version conflict")
)

// Document is one stored entity with its optimistic-locking version.
type Document struct {
	ID        string
	Version   int64
	Data      json.RawMessage
	UpdatedAt string
}

// Store is the SQLite-backed record store.
type Store struct {
	db *sql.DB
}

// Open creates the data directory if needed, opens (or creates) the
// database, and runs migrations.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "steward.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT    NOT NULL,
			id         TEXT    NOT NULL,
			version    INTEGER NOT NULL DEFAULT 1,
			doc        TEXT    NOT NULL,
			created_at TEXT    NOT NULL,
			updated_at TEXT    NOT NULL,
			PRIMARY KEY (collection, id)
		);

		CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert stores a new document. The id must not already exist.
func (s *Store) Insert(collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal %s/%s: %w", collection, id, err)
	}

	now := timeNow().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(
		`INSERT INTO documents (collection, id, version, doc, created_at, updated_at)
		 VALUES (?, ?, 1, ?, ?, ?)`,
		collection, id, string(data), now, now,
	)
	if err != nil {
		// modernc reports the PK violation as a constraint error string;
		// a pre-check would race, so classify after the fact.
		if exists, checkErr := s.exists(collection, id); checkErr == nil && exists {
			return fmt.Errorf("%w: %s/%s", ErrExists, collection, id)
		}
		return fmt.Errorf("store: insert %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get unmarshals the document into out and returns its current version.
func (s *Store) Get(collection, id string, out any) (int64, error) {
	var (
		version int64
		doc     string
	)
	err := s.db.QueryRow(
		`SELECT version, doc FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return 0, fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(doc), out); err != nil {
			return 0, fmt.Errorf("store: decode %s/%s: %w", collection, id, err)
		}
	}
	return version, nil
}

// Update replaces the document if and only if its stored version still
// equals expectedVersion (compare-and-swap). On success the version is
// incremented.
func (s *Store) Update(collection, id string, expectedVersion int64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal %s/%s: %w", collection, id, err)
	}

	now := timeNow().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(
		`UPDATE documents SET doc = ?, version = version + 1, updated_at = ?
		 WHERE collection = ? AND id = ? AND version = ?`,
		string(data), now, collection, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", collection, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", collection, id, err)
	}
	if affected == 0 {
		exists, checkErr := s.exists(collection, id)
		if checkErr != nil {
			return fmt.Errorf("store: update %s/%s: %w", collection, id, checkErr)
		}
		if !exists {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return fmt.Errorf("%w: %s/%s expected version %d", ErrConflict, collection, id, expectedVersion)
	}
	return nil
}

// List returns every document in a collection, ordered by id for
// deterministic iteration.
func (s *Store) List(collection string) ([]Document, error) {
	return s.ListWhere(collection, nil)
}

// ListWhere returns the documents matching pred (all when pred is nil).
// The predicate sees the raw JSON; callers unmarshal what they match on.
func (s *Store) ListWhere(collection string, pred func(json.RawMessage) bool) ([]Document, error) {
	rows, err := s.db.Query(
		`SELECT id, version, doc, updated_at FROM documents
		 WHERE collection = ? ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d   Document
			raw string
		)
		if err := rows.Scan(&d.ID, &d.Version, &raw, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", collection, err)
		}
		d.Data = json.RawMessage(raw)
		if pred != nil && !pred(d.Data) {
			continue
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Count returns the number of documents in a collection.
func (s *Store) Count(collection string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count %s: %w", collection, err)
	}
	return n, nil
}

func (s *Store) exists(collection, id string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
