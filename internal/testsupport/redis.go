package testsupport

import (
	"context"
	"fmt"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/rafaeljc/switchboard/internal/cache"
	"github.com/rafaeljc/switchboard/internal/config"
)

const redisImage = "redis:7-alpine"

// Snapshot key and channel used by tests. They differ from the configured
// defaults so no test passes by relying on them.
const (
	SnapshotKey     = "switchboard-test:snapshot"
	SnapshotChannel = "switchboard-test:snapshots"
)

// RedisContainer is a Redis server with a client opened through
// cache.NewRedisClient and a snapshot store bound to the test key.
type RedisContainer struct {
	Container testcontainers.Container
	Config    *config.RedisConfig
	Client    *goredis.Client
	Store     *cache.SnapshotStore
}

// Terminate closes the client and removes the container.
func (c *RedisContainer) Terminate(ctx context.Context) error {
	_ = c.Client.Close()
	return c.Container.Terminate(ctx)
}

// StartRedisContainer runs a fresh Redis server.
func StartRedisContainer(ctx context.Context) (*RedisContainer, error) {
	ctr, err := redis.Run(ctx, redisImage)
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	endpoint, err := ctr.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to get redis endpoint: %w", err)
	}
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("unexpected redis endpoint %q: %w", endpoint, err)
	}

	cfg := &config.RedisConfig{
		Host:            host,
		Port:            port,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		PoolTimeout:     4 * time.Second,
		PingMaxRetries:  5,
		PingBackoff:     250 * time.Millisecond,
		SnapshotKey:     SnapshotKey,
		SnapshotChannel: SnapshotChannel,
	}
	client, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	return &RedisContainer{
		Container: ctr,
		Config:    cfg,
		Client:    client,
		Store:     cache.NewSnapshotStore(client, SnapshotKey, SnapshotChannel),
	}, nil
}
