// Package main runs the Switchboard data plane.
//
// It is the composition root of the read path: it loads rules from a file
// or from the Redis snapshot store, serves evaluations over gRPC and HTTP,
// and exposes probes and metrics on the observability port.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/rafaeljc/switchboard/internal/cache"
	"github.com/rafaeljc/switchboard/internal/config"
	"github.com/rafaeljc/switchboard/internal/dataapi"
	"github.com/rafaeljc/switchboard/internal/decision"
	"github.com/rafaeljc/switchboard/internal/httpapi"
	"github.com/rafaeljc/switchboard/internal/loader"
	"github.com/rafaeljc/switchboard/internal/logger"
	"github.com/rafaeljc/switchboard/internal/observability"
	"github.com/rafaeljc/switchboard/internal/ruleengine"
)

// monitorInterval is how often pool and cache gauges are sampled.
const monitorInterval = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration & Logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App).With(slog.String("component", "data-plane"))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// -------------------------------------------------------------------------
	// 2. Rule Engine & Source
	// -------------------------------------------------------------------------
	engine := ruleengine.New(logger.Component(log, "engine"))
	checkers := []observability.Checker{engine}

	switch cfg.Source.Kind {
	case config.SourceRedis:
		if err := cfg.RequireRedis(); err != nil {
			return err
		}
		client, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()

		checkers = append(checkers, cache.NewHealthChecker(client))
		store := cache.NewSnapshotStore(client, cfg.Redis.SnapshotKey, cfg.Redis.SnapshotChannel)
		source := loader.NewRedisSource(logger.Component(log, "loader"), store, engine, cfg.Source.Resync)

		g.Go(func() error { return source.Run(gctx) })
		g.Go(func() error {
			cache.RunPoolMonitor(gctx, client, monitorInterval)
			return nil
		})

	default:
		watcher := loader.NewFileWatcher(logger.Component(log, "loader"), cfg.Source.File, engine, cfg.Source.Debounce)
		if cfg.Source.Watch {
			g.Go(func() error { return watcher.Run(gctx) })
		} else if err := watcher.Load(); err != nil {
			return err
		}
	}

	// -------------------------------------------------------------------------
	// 3. Decision Cache (L1)
	// -------------------------------------------------------------------------
	var decisions *cache.DecisionCache
	if cfg.Cache.Enabled {
		decisions, err = cache.NewDecisionCache(cfg.Cache.Capacity, cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("failed to create decision cache: %w", err)
		}
		defer decisions.Close()

		g.Go(func() error {
			decisions.RunMetricsCollector(gctx, monitorInterval)
			return nil
		})
	}
	svc := decision.NewService(engine, decisions)

	// -------------------------------------------------------------------------
	// 4. gRPC Server
	// -------------------------------------------------------------------------
	grpcCfg := cfg.Server.GRPC
	grpcAddr := grpcCfg.Address()
	listener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", grpcAddr, err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			dataapi.RequestLoggerInterceptor(log),
			dataapi.ObservabilityInterceptor(),
			dataapi.RecoveryInterceptor(),
		),
		grpc.MaxConcurrentStreams(grpcCfg.MaxConcurrentStreams),
		grpc.MaxRecvMsgSize(grpcCfg.MaxRecvMsgBytes),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:             grpcCfg.KeepaliveTime,
			Timeout:          grpcCfg.KeepaliveTimeout,
			MaxConnectionAge: grpcCfg.MaxConnectionAge,
		}),
	)
	dataapi.NewAPI(svc).Register(grpcServer)

	g.Go(func() error {
		log.Info("grpc server listening", slog.String("addr", grpcAddr))
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server failed: %w", err)
		}
		return nil
	})

	// -------------------------------------------------------------------------
	// 5. HTTP Server
	// -------------------------------------------------------------------------
	var httpServer *http.Server
	if cfg.Server.HTTP.Enabled {
		httpCfg := cfg.Server.HTTP
		api := httpapi.NewAPI(log, svc, httpapi.Options{
			APIKeyHash:   httpCfg.APIKeyHash,
			MaxBodyBytes: httpCfg.MaxBodyBytes,
		})
		httpServer = &http.Server{
			Addr:              httpCfg.Address(),
			Handler:           api,
			ReadTimeout:       httpCfg.ReadTimeout,
			WriteTimeout:      httpCfg.WriteTimeout,
			ReadHeaderTimeout: httpCfg.ReadHeaderTimeout,
			IdleTimeout:       httpCfg.IdleTimeout,
			MaxHeaderBytes:    httpCfg.MaxHeaderBytes,
		}

		g.Go(func() error {
			log.Info("http server listening",
				slog.String("addr", httpServer.Addr),
				slog.Bool("tls", httpCfg.TLSEnabled),
			)
			var err error
			if httpCfg.TLSEnabled {
				err = httpServer.ListenAndServeTLS(httpCfg.TLSCert, httpCfg.TLSKey)
			} else {
				err = httpServer.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server failed: %w", err)
			}
			return nil
		})
	}

	// -------------------------------------------------------------------------
	// 6. Observability
	// -------------------------------------------------------------------------
	obsServer := observability.NewServer(logger.Component(log, "observability"), &cfg.Observability, checkers...)
	g.Go(func() error { return obsServer.Run(gctx) })

	// -------------------------------------------------------------------------
	// 7. Graceful Shutdown
	// -------------------------------------------------------------------------
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", slog.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		// GracefulStop has no deadline of its own.
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}

		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error("http shutdown failed", slog.String("error", err.Error()))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("service exited successfully")
	return nil
}
