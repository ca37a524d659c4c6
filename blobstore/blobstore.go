// Package blobstore opens the configured blob storage backend.
package blobstore

import (
	"context"
	"fmt"
	"os"

	"github.com/sagarc03/guestbook"
	"github.com/sagarc03/guestbook/blobstore/filesystem"
	"github.com/sagarc03/guestbook/blobstore/minio"
	"github.com/sagarc03/guestbook/blobstore/s3"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is "filesystem", "s3" or "minio".
	Backend string `mapstructure:"backend"`
	// Path is the root directory for the filesystem backend.
	Path  string       `mapstructure:"path"`
	S3    s3.Config    `mapstructure:"s3"`
	Minio minio.Config `mapstructure:"minio"`
}

// Open returns the storage and a cleanup function the caller runs at exit.
func Open(ctx context.Context, cfg Config) (guestbook.BlobStorage, func(), error) {
	switch cfg.Backend {
	case "filesystem":
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create storage directory: %w", err)
		}
		root, err := os.OpenRoot(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage directory: %w", err)
		}
		return filesystem.NewFileStorage(root), func() { _ = root.Close() }, nil
	case "s3":
		store, err := s3.New(ctx, cfg.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("open s3 storage: %w", err)
		}
		return store, func() {}, nil
	case "minio":
		store, err := minio.New(ctx, cfg.Minio)
		if err != nil {
			return nil, nil, fmt.Errorf("open minio storage: %w", err)
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
