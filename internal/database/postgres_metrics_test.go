//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/switchboard/internal/config"
	"github.com/rafaeljc/switchboard/internal/database"
	"github.com/rafaeljc/switchboard/internal/testsupport"
)

const poolMax = 4

func poolGauge(t *testing.T, state string) float64 {
	t.Helper()
	return testsupport.GetMetricValue(t, testsupport.Metric("database", "pool_connections"), map[string]string{"state": state})
}

func holdAll(t *testing.T, pool *pgxpool.Pool) []*pgxpool.Conn {
	t.Helper()
	conns := make([]*pgxpool.Conn, 0, poolMax)
	for range poolMax {
		c, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		conns = append(conns, c)
	}
	return conns
}

func TestPostgresPool_Integration(t *testing.T) {
	ctx := context.Background()
	pg, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err)
	defer pg.Terminate(ctx)

	pool, err := database.NewPostgresPool(ctx, &config.DatabaseConfig{
		URL:              pg.ConnectionString,
		ApplicationName:  "switchboard-it",
		StatementTimeout: 200 * time.Millisecond,
		MaxConns:         poolMax,
		ConnectTimeout:   5 * time.Second,
		PingMaxRetries:   5,
		PingBackoff:      500 * time.Millisecond,
	})
	require.NoError(t, err)
	defer pool.Close()

	monitorCtx, stop := context.WithCancel(ctx)
	defer stop()
	go database.RunPoolMonitor(monitorCtx, pool, 10*time.Millisecond)

	t.Run("Should apply session settings", func(t *testing.T) {
		var app string
		require.NoError(t, pool.QueryRow(ctx, "SHOW application_name").Scan(&app))
		assert.Equal(t, "switchboard-it", app)

		_, err := pool.Exec(ctx, "SELECT pg_sleep(1)")
		assert.Error(t, err, "statement_timeout should cancel the sleep")
	})

	t.Run("Should expose the pool ceiling and in-use gauge", func(t *testing.T) {
		require.Eventually(t, func() bool { return poolGauge(t, "max") == poolMax },
			2*time.Second, 10*time.Millisecond)

		conns := holdAll(t, pool)
		require.Eventually(t, func() bool { return poolGauge(t, "in_use") == poolMax },
			2*time.Second, 10*time.Millisecond)

		short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, err := pool.Acquire(short)
		assert.Error(t, err, "acquire beyond the ceiling must time out")

		for _, c := range conns {
			c.Release()
		}
		require.Eventually(t, func() bool { return poolGauge(t, "in_use") == 0 },
			2*time.Second, 10*time.Millisecond)
	})

	t.Run("Should count acquisitions", func(t *testing.T) {
		name := testsupport.Metric("database", "pool_acquire_count_total")
		before := testsupport.GetMetricValue(t, name, nil)

		for range 3 {
			c, err := pool.Acquire(ctx)
			require.NoError(t, err)
			c.Release()
		}

		require.Eventually(t, func() bool {
			return testsupport.GetMetricValue(t, name, nil) >= before+3
		}, 2*time.Second, 10*time.Millisecond)
		assert.Positive(t, testsupport.GetMetricValue(t, testsupport.Metric("database", "pool_acquire_duration_seconds_total"), nil))
	})

	t.Run("Should count waits on an exhausted pool", func(t *testing.T) {
		conns := holdAll(t, pool)

		acquired := make(chan struct{})
		go func() {
			if c, err := pool.Acquire(ctx); err == nil {
				c.Release()
			}
			close(acquired)
		}()

		time.Sleep(50 * time.Millisecond)
		for _, c := range conns {
			c.Release()
		}
		select {
		case <-acquired:
		case <-time.After(5 * time.Second):
			t.Fatal("waiter never got a connection")
		}

		require.Eventually(t, func() bool {
			return testsupport.GetMetricValue(t, testsupport.Metric("database", "pool_wait_count_total"), nil) >= 1
		}, 2*time.Second, 10*time.Millisecond)
	})
}
