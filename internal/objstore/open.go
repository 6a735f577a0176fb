package objstore

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/postsearch/internal/config"
)

// Open constructs the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.SourceConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return NewS3Store(ctx, S3Options{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
			PageSize:  cfg.PageSize,
		})
	case config.BackendRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PageSize: cfg.PageSize,
		})
	case config.BackendFS:
		return NewFSStore(cfg.FSRoot, cfg.PageSize), nil
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.Backend)
	}
}
