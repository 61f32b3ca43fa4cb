// Package database provides the PostgreSQL connection factory used by the
// syncer to read rule definitions.
package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/switchboard/internal/config"
	"github.com/rafaeljc/switchboard/internal/observability"
	"github.com/rafaeljc/switchboard/internal/retry"
)

// NewPostgresPool opens a pool on cfg and waits until the database answers
// a ping, retrying with doubling backoff. The caller owns the pool.
func NewPostgresPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config cannot be nil")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	tune(poolCfg, cfg)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	err = retry.Do(ctx, "postgres", retry.Policy{
		Attempts: cfg.PingMaxRetries,
		Backoff:  cfg.PingBackoff,
		Timeout:  max(cfg.ConnectTimeout, time.Second),
	}, pool.Ping)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// tune copies the pool limits and session settings from cfg. Zero values
// keep the pgxpool defaults.
func tune(poolCfg *pgxpool.Config, cfg *config.DatabaseConfig) {
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns >= 0 && cfg.MinConns <= cfg.MaxConns {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	params := poolCfg.ConnConfig.RuntimeParams
	if cfg.ApplicationName != "" {
		params["application_name"] = cfg.ApplicationName
	}
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
}

// RunPoolMonitor samples pool statistics into Prometheus every interval
// until ctx is cancelled. pgxpool reports cumulative counters, so the
// monitor adds the delta since the previous sample.
func RunPoolMonitor(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastAcquires, lastWaits int64
	var lastAcquireDur time.Duration

	sample := func() {
		st := pool.Stat()
		conns := observability.DatabasePoolConnections
		conns.WithLabelValues("total").Set(float64(st.TotalConns()))
		conns.WithLabelValues("idle").Set(float64(st.IdleConns()))
		conns.WithLabelValues("in_use").Set(float64(st.AcquiredConns()))
		conns.WithLabelValues("max").Set(float64(st.MaxConns()))

		if d := st.AcquireCount() - lastAcquires; d > 0 {
			observability.DatabasePoolAcquireCount.Add(float64(d))
		}
		if d := st.AcquireDuration() - lastAcquireDur; d > 0 {
			observability.DatabasePoolAcquireDuration.Add(d.Seconds())
		}
		if d := st.EmptyAcquireCount() - lastWaits; d > 0 {
			observability.DatabasePoolWaitCount.Add(float64(d))
		}
		lastAcquires = st.AcquireCount()
		lastAcquireDur = st.AcquireDuration()
		lastWaits = st.EmptyAcquireCount()
	}

	sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}
