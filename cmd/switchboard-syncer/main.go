// Package main runs the Switchboard syncer.
//
// It polls the rules stored in PostgreSQL, validates every change with a
// dry-run build and publishes valid definitions to Redis for the data planes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rafaeljc/switchboard/internal/cache"
	"github.com/rafaeljc/switchboard/internal/config"
	"github.com/rafaeljc/switchboard/internal/database"
	"github.com/rafaeljc/switchboard/internal/logger"
	"github.com/rafaeljc/switchboard/internal/observability"
	"github.com/rafaeljc/switchboard/internal/store"
	"github.com/rafaeljc/switchboard/internal/syncer"
)

const monitorInterval = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	if err := cfg.RequireRedis(); err != nil {
		return err
	}

	log := logger.New(&cfg.App).With(slog.String("component", "syncer"))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------------------------------------------------------------------------
	// Infrastructure
	// -------------------------------------------------------------------------
	pool, err := database.NewPostgresPool(logger.WithContext(ctx, log), &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	client, err := cache.NewRedisClient(logger.WithContext(ctx, log), &cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer client.Close()

	// -------------------------------------------------------------------------
	// Wiring
	// -------------------------------------------------------------------------
	repo := store.NewPostgresStore(pool)
	snapshots := cache.NewSnapshotStore(client, cfg.Redis.SnapshotKey, cfg.Redis.SnapshotChannel)
	svc := syncer.New(log, cfg.Syncer, repo, snapshots)

	obsServer := observability.NewServer(logger.Component(log, "observability"), &cfg.Observability,
		database.NewHealthChecker(pool),
		cache.NewHealthChecker(client),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error { return obsServer.Run(gctx) })
	g.Go(func() error {
		database.RunPoolMonitor(gctx, pool, monitorInterval)
		return nil
	})
	g.Go(func() error {
		cache.RunPoolMonitor(gctx, client, monitorInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("syncer exited successfully")
	return nil
}
