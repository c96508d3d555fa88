package core

import (
	"context"
	"fmt"

	"gymledger/internal/infra/persistence/memory"
	"gymledger/internal/infra/persistence/postgres"
	"gymledger/internal/infra/persistence/sqlite"
	"gymledger/internal/infra/persistence/textfile"
	"gymledger/pkg/domain"
)

// StorageDriver identifies a concrete persistence backend.
type StorageDriver string

const (
	StorageText     StorageDriver = "text"     // pipe-delimited file (default)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageMemory   StorageDriver = "memory"   // ephemeral, tests and demos
)

// StorageConfig selects and parameterises a persister.
type StorageConfig struct {
	Driver      StorageDriver
	DataFile    string
	SQLitePath  string
	PostgresDSN string
}

// OpenPersister builds the persister named by cfg.Driver. An empty driver
// selects the text file backend.
func OpenPersister(ctx context.Context, cfg StorageConfig) (domain.Persister, error) {
	switch cfg.Driver {
	case "", StorageText:
		return textfile.New(cfg.DataFile)
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	case StorageMemory:
		return memory.NewPersister(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
