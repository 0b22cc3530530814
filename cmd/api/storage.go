package main

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/migrate"
	"github.com/angelmondragon/storefront/pkg/redis"
	"go.uber.org/multierr"
)

// storage is the snapshot backend selected by STOREFRONT_STORAGE_DRIVER plus the
// clients it holds open.
type storage struct {
	snapshots cart.SnapshotStore
	pinger    controllers.Pinger
	db        *db.Client
	redis     *redis.Client
	repo      *cart.Repository
}

func openStorage(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*storage, error) {
	out := &storage{}

	// redis also backs idempotency replay and the maintenance lock, so it is opened
	// whenever it is configured, not only for the redis snapshot driver
	if cfg.Storage.Driver == config.StorageDriverRedis || cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		out.redis = client
	}

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logg.Warn(ctx, "cart snapshots kept in memory, carts are lost on restart")
		out.snapshots = cart.NewMemorySnapshotStore()

	case config.StorageDriverRedis:
		store, err := cart.NewRedisSnapshotStore(out.redis, cfg.Storage.SnapshotTTL)
		if err != nil {
			return nil, err
		}
		out.snapshots = store
		out.pinger = out.redis

	case config.StorageDriverSQLite, config.StorageDriverPostgres:
		client, err := db.New(ctx, cfg.Storage, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		out.db = client
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		repo, err := cart.NewRepository(client.DB(), cfg.Storage.SnapshotTTL)
		if err != nil {
			return nil, err
		}
		out.repo = repo
		out.snapshots = repo
		out.pinger = client

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
	return out, nil
}

// close releases whichever clients were opened.
func (s *storage) close() error {
	var errs error
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errs
}
