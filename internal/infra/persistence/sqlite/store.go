// Package sqlite persists the member set to an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"gymledger/internal/infra/persistence/relational"
	"gymledger/pkg/domain"
)

// DefaultPath is used when no database file is configured.
const DefaultPath = "gymledger.db"

var _ domain.Persister = (*Store)(nil)

var dialect = relational.Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	DDL: `CREATE TABLE IF NOT EXISTS members (
		position   INTEGER NOT NULL,
		id         INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		gender     TEXT NOT NULL,
		age        INTEGER NOT NULL,
		phone      TEXT NOT NULL,
		join_date  TEXT NOT NULL,
		plan       TEXT NOT NULL,
		active     INTEGER NOT NULL,
		bonus_days INTEGER NOT NULL
	)`,
}

// Store snapshots the full member set into a SQLite file on every save.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating if needed) the database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps sqlite writes serialized
	db.SetMaxOpenConns(1)
	if err := relational.EnsureSchema(context.Background(), db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Load returns the persisted members in saved order.
func (s *Store) Load(ctx context.Context) (domain.LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return relational.Load(ctx, s.db)
}

// Save atomically replaces the persisted member set.
func (s *Store) Save(ctx context.Context, members []domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return relational.Save(ctx, s.db, dialect, members)
}

// Describe identifies the backend in logs.
func (s *Store) Describe() string { return "sqlite:" + s.path }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
