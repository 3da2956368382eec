package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/paydash/internal/analytics"
	"github.com/odyssey-erp/paydash/internal/app"
	"github.com/odyssey-erp/paydash/internal/ingest"
	"github.com/odyssey-erp/paydash/internal/ledger/store"
	"github.com/odyssey-erp/paydash/internal/observability"
	"github.com/odyssey-erp/paydash/internal/platform/cache"
	"github.com/odyssey-erp/paydash/internal/platform/db"
)

// deps holds the shared dependencies of every command.
type deps struct {
	pool     *pgxpool.Pool
	redis    *redis.Client
	store    *store.Store
	service  *analytics.Service
	importer *ingest.Importer
}

func (rt *deps) Close(logger *slog.Logger) {
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}

// newDeps connects to PostgreSQL and, when reachable, Redis. Without
// Redis every view is computed on demand.
func newDeps(ctx context.Context, cfg *app.Config, logger *slog.Logger, metrics *observability.Metrics) (*deps, error) {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{ApplicationName: "paydash"})
	if err != nil {
		return nil, err
	}
	rt := &deps{pool: pool, store: store.New(pool)}

	if err := rt.store.EnsureSchema(ctx); err != nil {
		rt.Close(logger)
		return nil, err
	}

	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, serving uncached views", slog.Any("error", err))
	} else {
		rt.redis = client
	}

	rt.service = analytics.NewService(rt.store, analytics.NewCache(rt.redis, cfg.CacheTTL), cfg.Policy()).
		WithLogger(logger).
		WithObserver(metrics.Pipeline())
	rt.importer = ingest.NewImporter(ingest.NewParser(cfg.ImportSheet), rt.store, rt.service, logger)
	return rt, nil
}

func migrate(ctx context.Context, cfg *app.Config) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{ApplicationName: "paydash-migrate", MaxConns: 1})
	if err != nil {
		return err
	}
	defer pool.Close()
	return store.New(pool).EnsureSchema(ctx)
}
