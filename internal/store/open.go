package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/foot-traffic-etl/internal/config"
)

// Open builds a Store on the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Driver {
	case config.StoreDriverFS, "":
		backend, err = NewFileBackend(cfg.Path)
	case config.StoreDriverS3:
		backend, err = NewS3Backend(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Key:       cfg.S3Key,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return New(backend, logger), nil
}
