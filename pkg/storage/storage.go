package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/doongeon/good-filings/pkg/logger"
	"github.com/doongeon/good-filings/pkg/storage/minio"
	"github.com/doongeon/good-filings/pkg/storage/s3"
)

// StorageType selects the object storage backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage persists conversion artifacts and downloaded filings.
type Storage interface {
	// Store writes the object and returns its key.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get reads the object back.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object.
	Delete(ctx context.Context, key string) error
	// CleanupBefore removes objects last modified before the threshold.
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewStorage is the backend factory. An empty type defaults to minio, which
// needs no cloud credentials for local work.
func NewStorage(storageType StorageType, logger logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		return s3.GetClient(logger)
	case StorageTypeMinio, "":
		return minio.GetClient(logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
