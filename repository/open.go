package repository

import (
	"context"
	"fmt"

	"github.com/shopverse/category_service/config"
)

// Open creates and initializes the repository selected by cfg.StorageDriver.
// PostgreSQL settings come from provider.
func Open(ctx context.Context, cfg *config.ServerConfig, provider config.Provider) (Repository, error) {
	var repo Repository
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pg, err := NewPostgresRepository(ctx, provider)
		if err != nil {
			return nil, err
		}
		repo = pg
	case config.StorageSQLite:
		repo = NewSQLiteRepository(cfg.SQLitePath)
	case config.StorageMemory:
		repo = NewMockRepository()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if err := repo.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", cfg.StorageDriver, err)
	}
	return repo, nil
}
