package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/switchboard/internal/observability"
)

// NewHealthChecker reports Redis as ready while it answers PING within the
// probe deadline.
func NewHealthChecker(client redis.Cmdable) observability.Checker {
	return observability.CheckerFunc("redis", func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	})
}
