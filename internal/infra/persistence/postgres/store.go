// Package postgres persists the member set to a PostgreSQL database through
// the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"gymledger/internal/infra/persistence/relational"
	"gymledger/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Persister = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/gymledger?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var dialect = relational.Dialect{
	Name:        "postgres",
	Placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
	DDL: `CREATE TABLE IF NOT EXISTS members (
		position   INTEGER NOT NULL,
		id         BIGINT PRIMARY KEY,
		name       TEXT NOT NULL,
		gender     TEXT NOT NULL,
		age        INTEGER NOT NULL,
		phone      TEXT NOT NULL,
		join_date  TEXT NOT NULL,
		plan       TEXT NOT NULL,
		active     SMALLINT NOT NULL,
		bonus_days INTEGER NOT NULL
	)`,
}

// Store snapshots the member set into Postgres on every save.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN), pings it and ensures the members table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := relational.EnsureSchema(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
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
func (s *Store) Describe() string { return "postgres" }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
