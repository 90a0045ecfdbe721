// Package storage keeps uploaded resume files.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/fadilmartias/resume-insight/internal/config"
)

var ErrNotFound = errors.New("object not found")

type Store interface {
	// Save writes data under key and returns a locator for it.
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Load(ctx context.Context, key string) ([]byte, error)
}

// New picks the store configured by STORAGE_DRIVER.
func New(ctx context.Context, cfg *config.StorageConfig, localDir string) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(localDir)
	case "s3", "r2":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
