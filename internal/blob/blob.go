// Package blob re-exports the artifact store abstractions and selects a
// backend from the environment.
package blob

import (
	"context"
	"fmt"
	"os"

	"targetdb/internal/blob/core"
	fsstore "targetdb/internal/infra/blob/fs"
	memorystore "targetdb/internal/infra/blob/memory"
	s3store "targetdb/internal/infra/blob/s3"
)

type (
	// Driver identifies an artifact backend driver.
	Driver = core.Driver
	// PutOptions configures an artifact write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored artifact metadata.
	Info = core.Info
	// Store is the interface for artifact storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates an operation a driver cannot perform.
var ErrUnsupported = core.ErrUnsupported

// ErrNotFound indicates no artifact exists under a key.
var ErrNotFound = core.ErrNotFound

// NewFilesystem returns a filesystem store rooted at root.
func NewFilesystem(root string) (Store, error) { return fsstore.New(root) }

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed Store from explicit configuration.
func NewS3(ctx context.Context, cfg s3store.Config) (Store, error) { return s3store.New(ctx, cfg) }

// Open selects a Store implementation using environment variables.
//
//	TARGETDB_BLOB_DRIVER: fs|s3|memory (default fs)
//	TARGETDB_BLOB_FS_ROOT: directory root when driver=fs (default ./networks)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("TARGETDB_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("TARGETDB_BLOB_FS_ROOT"))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
