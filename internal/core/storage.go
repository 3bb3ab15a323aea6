package core

import (
	"context"
	"fmt"
	"os"

	"portalcore/internal/infra/persistence/file"
	"portalcore/internal/infra/persistence/memory"
	"portalcore/internal/infra/persistence/postgres"
	"portalcore/internal/infra/persistence/s3"
	"portalcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageFile     StorageDriver = "file"     // single JSON document on disk
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageS3       StorageDriver = "s3"       // S3-compatible object storage
)

// OpenPersistentStore selects a backend using environment variables and seeds
// it with the supplied document when the backend holds no state yet. Defaults
// to the file driver when unset.
//
//	PORTALCORE_STORAGE_DRIVER: memory|file|sqlite|postgres|s3 (default file)
//	PORTALCORE_FILE_PATH: path to the JSON document (default ./portalcore.json)
//	PORTALCORE_SQLITE_PATH: path to sqlite file (default ./portalcore.db)
//	PORTALCORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	PORTALCORE_S3_BUCKET / PORTALCORE_S3_REGION / PORTALCORE_S3_KEY /
//	PORTALCORE_S3_ENDPOINT / PORTALCORE_S3_PATH_STYLE: object storage settings
func OpenPersistentStore(ctx context.Context, engine *RulesEngine, seed Document) (PersistentStore, error) {
	driver := os.Getenv("PORTALCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageFile)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		store := memory.NewStore(engine)
		store.ImportState(seed.Clone())
		return store, nil
	case StorageFile:
		path := os.Getenv("PORTALCORE_FILE_PATH")
		return file.NewStore(path, engine, seed)
	case StorageSQLite:
		path := os.Getenv("PORTALCORE_SQLITE_PATH")
		return sqlite.NewStore(path, engine, seed)
	case StoragePostgres:
		dsn := os.Getenv("PORTALCORE_POSTGRES_DSN")
		return postgres.NewStore(dsn, engine, seed)
	case StorageS3:
		cfg := s3.Config{
			Region:    os.Getenv("PORTALCORE_S3_REGION"),
			Bucket:    os.Getenv("PORTALCORE_S3_BUCKET"),
			Key:       os.Getenv("PORTALCORE_S3_KEY"),
			Endpoint:  os.Getenv("PORTALCORE_S3_ENDPOINT"),
			PathStyle: os.Getenv("PORTALCORE_S3_PATH_STYLE") == "true",
		}
		return s3.NewStore(ctx, cfg, engine, seed)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
