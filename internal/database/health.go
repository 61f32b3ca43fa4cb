package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/rafaeljc/switchboard/internal/observability"
)

// pinger is the part of *pgxpool.Pool the probe uses.
type pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthChecker reports PostgreSQL as ready while the pool answers a
// ping within the probe deadline.
func NewHealthChecker(pool pinger) observability.Checker {
	return observability.CheckerFunc("postgres", func(ctx context.Context) error {
		if pool == nil {
			return errors.New("database pool is nil")
		}
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
		return nil
	})
}
