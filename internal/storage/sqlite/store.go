// Package sqlite keeps the vector index and the document store in a single
// SQLite file.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"ragcore/internal/domain"
	"ragcore/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS points (
	collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
	id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	doc_id TEXT NOT NULL,
	name TEXT NOT NULL,
	source TEXT NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE TABLE IF NOT EXISTS documents (
	doc_id TEXT NOT NULL,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	content TEXT NOT NULL,
	tables TEXT NOT NULL,
	PRIMARY KEY (doc_id, name)
);
`

// Store owns the database handle shared by the index and document store.
// Writes are serialised through writeMu so concurrent ingestion workers do
// not race for the SQLite write lock.
type Store struct {
	writeMu    sync.Mutex
	db         *sql.DB
	path       string
	collection string
}

// Open creates or opens the database at path. collection names the vector
// collection used by VectorIndex.
func Open(path, collection string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is empty", domain.ErrInvalidInput)
	}
	if collection == "" {
		collection = vectorstore.DefaultCollection
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", domain.ErrIndexUnavailable, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: creating schema: %w", domain.ErrIndexUnavailable, err)
	}
	return &Store{db: db, path: path, collection: collection}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Path() string { return s.path }

// VectorIndex returns the collection-scoped vector index backed by this store.
func (s *Store) VectorIndex() domain.VectorIndex {
	return &vectorIndex{store: s}
}

// DocumentStore returns a DocumentStore backed by this store.
func (s *Store) DocumentStore() domain.DocumentStore {
	return &documentStore{store: s}
}
