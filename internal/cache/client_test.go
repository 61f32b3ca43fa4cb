package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/switchboard/internal/config"
)

func TestOptions(t *testing.T) {
	base := config.RedisConfig{
		Host:         "redis.internal",
		Port:         "6380",
		Password:     "secret",
		DB:           2,
		ClientName:   "switchboard-data",
		PoolSize:     8,
		MinIdleConns: 2,
		DialTimeout:  time.Second,
		MaxRetries:   1,
	}

	t.Run("Should build from fields", func(t *testing.T) {
		opts, err := options(&base)
		require.NoError(t, err)
		assert.Equal(t, "redis.internal:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, "switchboard-data", opts.ClientName)
		assert.Equal(t, 8, opts.PoolSize)
		assert.Nil(t, opts.TLSConfig)
	})

	t.Run("Should prefer the URL but keep pool settings", func(t *testing.T) {
		cfg := base
		cfg.URL = "redis://:fromurl@cache.example.com:6379/5"
		opts, err := options(&cfg)
		require.NoError(t, err)
		assert.Equal(t, "cache.example.com:6379", opts.Addr)
		assert.Equal(t, "fromurl", opts.Password)
		assert.Equal(t, 5, opts.DB)
		assert.Equal(t, 8, opts.PoolSize)
	})

	t.Run("Should enable TLS on request", func(t *testing.T) {
		cfg := base
		cfg.TLSEnabled = true
		opts, err := options(&cfg)
		require.NoError(t, err)
		require.NotNil(t, opts.TLSConfig)
	})

	t.Run("Should reject a malformed URL", func(t *testing.T) {
		cfg := base
		cfg.URL = "http://cache.example.com"
		_, err := options(&cfg)
		assert.Error(t, err)
	})
}
