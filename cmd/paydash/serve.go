package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/paydash/internal/admin"
	analytichttp "github.com/odyssey-erp/paydash/internal/analytics/http"
	"github.com/odyssey-erp/paydash/internal/app"
	"github.com/odyssey-erp/paydash/internal/observability"
	"github.com/odyssey-erp/paydash/jobs"
)

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	d, err := newDeps(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer d.Close(logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	var queue admin.Enqueuer
	if cfg.ImportAsync {
		client, err := jobs.NewClient(redisOpts)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		queue = client
	}

	adminHandler := admin.NewHandler(logger, admin.Config{
		User:           cfg.AdminUser,
		PasswordHash:   cfg.AdminPasswordHash,
		MaxUploadBytes: cfg.ImportMaxBytes,
		Async:          cfg.ImportAsync,
	}, d.store, d.importer, queue, d.service).WithAudit(d.store)

	analyticsHandler := analytichttp.NewHandler(logger, d.service)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AnalyticsHandler: analyticsHandler,
		AdminHandler:     adminHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Bool("async_import", cfg.ImportAsync))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
