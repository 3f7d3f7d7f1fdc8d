package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cabinet/internal/config"
	"cabinet/internal/domain/services"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewBlobStoreFromConfig creates the configured backend. The closer releases
// backend resources (the badger database) and is a no-op otherwise.
func NewBlobStoreFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.BlobStore, io.Closer, error) {
	switch cfg.BlobBackend {
	case "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "filesystem":
		if cfg.BlobFSRoot == "" {
			return nil, nil, fmt.Errorf("filesystem blob store requires BLOB_FS_ROOT to be set")
		}
		store, err := NewFileSystemStore(cfg.BlobFSRoot)
		if err != nil {
			return nil, nil, err
		}
		return store, nopCloser{}, nil
	case "badger":
		if cfg.BadgerDir == "" {
			return nil, nil, fmt.Errorf("badger blob store requires BADGER_DIR to be set")
		}
		store, err := NewBadgerStore(cfg.BadgerDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case "s3":
		store, err := NewS3StoreFromConfig(ctx, cfg.S3, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob backend: %s", cfg.BlobBackend)
	}
}
