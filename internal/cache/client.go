package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/switchboard/internal/config"
	"github.com/rafaeljc/switchboard/internal/observability"
	"github.com/rafaeljc/switchboard/internal/retry"
)

// NewRedisClient opens a client on cfg and waits until the server answers
// a PING, retrying with doubling backoff.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	err = retry.Do(ctx, "redis", retry.Policy{
		Attempts: cfg.PingMaxRetries,
		Backoff:  cfg.PingBackoff,
		Timeout:  max(cfg.DialTimeout, time.Second),
	}, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// options maps cfg onto go-redis options. A URL supplies the address,
// credentials and database; the pool and timeout settings always come from
// cfg.
func options(cfg *config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		opts = parsed
	}

	opts.ClientName = cfg.ClientName
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.MinRetryBackoff
	opts.MaxRetryBackoff = cfg.MaxRetryBackoff

	if cfg.TLSEnabled && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// RunPoolMonitor samples the client pool statistics into Prometheus every
// interval until ctx is cancelled.
func RunPoolMonitor(ctx context.Context, client *redis.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last redis.PoolStats
	sample := func() {
		st := client.PoolStats()
		conns := observability.RedisPoolConnections
		conns.WithLabelValues("total").Set(float64(st.TotalConns))
		conns.WithLabelValues("idle").Set(float64(st.IdleConns))
		conns.WithLabelValues("stale").Set(float64(st.StaleConns))

		if st.Hits > last.Hits {
			observability.RedisPoolHits.Add(float64(st.Hits - last.Hits))
		}
		if st.Misses > last.Misses {
			observability.RedisPoolMisses.Add(float64(st.Misses - last.Misses))
		}
		if st.Timeouts > last.Timeouts {
			observability.RedisPoolTimeouts.Add(float64(st.Timeouts - last.Timeouts))
		}
		last = *st
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
