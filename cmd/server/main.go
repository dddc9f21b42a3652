package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JonMunkholm/apptimport/internal/config"
	"github.com/JonMunkholm/apptimport/internal/core"
	"github.com/JonMunkholm/apptimport/internal/logging"
	"github.com/JonMunkholm/apptimport/internal/store"
	"github.com/JonMunkholm/apptimport/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_workers", cfg.Import.Workers,
		"max_concurrent_batches", cfg.Import.MaxConcurrentBatches,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	loc, err := time.LoadLocation(cfg.Import.TimeZone)
	if err != nil {
		slog.Error("invalid import time zone", "zone", cfg.Import.TimeZone, "error", err)
		os.Exit(1)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	st := store.New(pool)
	service, err := core.NewService(st.Dependencies(), core.Options{
		MaxFileSize:          cfg.Import.MaxFileSize,
		PreviewRows:          cfg.Import.PreviewRows,
		ErrorSamples:         cfg.Import.ErrorSamples,
		Workers:              cfg.Import.Workers,
		MaxConcurrentBatches: cfg.Import.MaxConcurrentBatches,
		QueueWait:            cfg.Import.QueueWait,
		BatchTimeout:         cfg.Import.BatchTimeout,
		MatchThreshold:       cfg.Import.MatchThreshold,
		DefaultDuration:      cfg.Import.DefaultDuration,
		Location:             loc,
		DefaultCharset:       cfg.Import.DefaultCharset,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg,
		web.WithBatchHistory(st),
		web.WithHealthCheck(pool),
	)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	if _, err := service.StartRetentionScheduler(jobCtx, core.RetentionConfig{
		JobTTL:   cfg.Retention.JobTTL,
		BatchTTL: cfg.Retention.BatchTTL,
		Schedule: cfg.Retention.Schedule,
	}); err != nil {
		slog.Error("failed to start retention scheduler", "error", err)
		os.Exit(1)
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop taking requests first so no new batch starts while we wait.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for batches to finish", "active", status.Active)
		}
		if err := service.WaitForBatches(shutdownCtx); err != nil {
			slog.Warn("batches did not finish in time", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}
