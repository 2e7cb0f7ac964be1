package core

import (
	"context"
	"fmt"
	"os"

	"targetdb/internal/infra/persistence/memory"
	"targetdb/internal/infra/persistence/postgres"
	"targetdb/internal/infra/persistence/sqlite"
	"targetdb/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	StoreView       = domain.StoreView
	PersistentStore = domain.PersistentStore
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	TARGETDB_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	TARGETDB_SQLITE_PATH: path to sqlite file (default ./targetdb.db)
//	TARGETDB_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(ctx context.Context) (PersistentStore, error) {
	driver := os.Getenv("TARGETDB_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("TARGETDB_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(ctx, os.Getenv("TARGETDB_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
