// Package retry repeats calls to backing services, doubling the wait
// between attempts. It dials Postgres and Redis at startup and wraps the
// syncer's snapshot publish.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafaeljc/switchboard/internal/logger"
)

// Policy bounds the attempts of Do.
type Policy struct {
	// Attempts is the total number of tries. Values below one mean one.
	Attempts int
	// Backoff is the wait after the first failure. It doubles every time.
	Backoff time.Duration
	// Timeout bounds a single attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
}

// Do calls fn until it succeeds, the attempts run out or ctx is done. Each
// failure is logged with the logger carried by ctx under the given target
// name. The last error is returned wrapped.
func Do(ctx context.Context, target string, p Policy, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	backoff := p.Backoff
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = call(ctx, p.Timeout, fn)
		if lastErr == nil {
			log.Info(target+" reachable", slog.Int("attempt", attempt))
			return nil
		}

		log.Warn(target+" unreachable",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.String("error", lastErr.Error()),
		)
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: gave up waiting: %w", target, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}
	return fmt.Errorf("%s: unreachable after %d attempts: %w", target, attempts, lastErr)
}

func call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
