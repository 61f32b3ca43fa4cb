// Package syncer implements the background worker that propagates rule
// definitions from the source of truth (PostgreSQL) to the data plane
// (Redis snapshot store).
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafaeljc/switchboard/internal/cache"
	"github.com/rafaeljc/switchboard/internal/config"
	"github.com/rafaeljc/switchboard/internal/logger"
	"github.com/rafaeljc/switchboard/internal/observability"
	"github.com/rafaeljc/switchboard/internal/retry"
	"github.com/rafaeljc/switchboard/internal/ruleengine"
)

// Source reads versioned definitions.
type Source interface {
	Revision(ctx context.Context) (int64, error)
	LoadDefinition(ctx context.Context) (int64, ruleengine.Definition, error)
}

// Publisher stores a snapshot for the data plane.
type Publisher interface {
	Publish(ctx context.Context, snap cache.Snapshot) (cache.SetResult, error)
}

// Outcome of one sync cycle, also used as the metric label.
const (
	OutcomePublished = "published"
	OutcomeUnchanged = "unchanged"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "fail"
)

// Service orchestrates the synchronization process.
type Service struct {
	logger    *slog.Logger
	config    config.SyncerConfig
	source    Source
	publisher Publisher

	// Last revision handled by a cycle, whether published or rejected.
	// Only the Run goroutine touches it.
	lastRevision int64
	lastOutcome  string
}

// New creates a new Syncer service.
func New(logger *slog.Logger, cfg config.SyncerConfig, source Source, publisher Publisher) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	if source == nil {
		panic("syncer: rule source cannot be nil")
	}
	if publisher == nil {
		panic("syncer: publisher cannot be nil")
	}

	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second // Safe default
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Service{
		logger:       logger,
		config:       cfg,
		source:       source,
		publisher:    publisher,
		lastRevision: -1,
	}
}

// Run starts the syncer loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting syncer service",
		slog.Duration("interval", s.config.Interval),
		slog.Duration("timeout", s.config.Timeout),
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run once immediately on startup
	s.SyncOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer service stopping...")
			return nil
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}

// SyncOnce runs one cycle and returns its outcome. Failures are logged and
// retried on the next tick; they never stop the worker.
func (s *Service) SyncOnce(ctx context.Context) string {
	start := time.Now()
	cycleCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	outcome, err := s.sync(cycleCtx)
	observability.SyncerCycleDuration.Observe(time.Since(start).Seconds())
	observability.SyncerCyclesTotal.WithLabelValues(outcome).Inc()

	if err != nil {
		s.logger.Error("sync cycle failed",
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return outcome
}

func (s *Service) sync(ctx context.Context) (string, error) {
	// 1. Cheap change detection.
	rev, err := s.source.Revision(ctx)
	if err != nil {
		return OutcomeFailed, err
	}
	if rev == s.lastRevision && s.lastOutcome != OutcomeFailed {
		return OutcomeUnchanged, nil
	}

	// 2. Read from Source of Truth (Postgres)
	rev, def, err := s.source.LoadDefinition(ctx)
	if err != nil {
		return OutcomeFailed, err
	}

	// 3. Validate exactly the way the data plane will. A definition that
	// does not build is never published, so data planes keep serving the
	// last good one.
	g, err := ruleengine.Build(def)
	if err != nil {
		if rev != s.lastRevision {
			s.logger.Error("definition rejected, not publishing",
				slog.Int64("revision", rev),
				slog.String("error", err.Error()),
			)
		}
		s.remember(rev, OutcomeInvalid)
		return OutcomeInvalid, nil
	}

	// 4. Publish to the data plane store.
	snap := cache.Snapshot{Version: rev, Checksum: g.Checksum(), Definition: def}
	res, err := s.publishWithRetry(ctx, snap)
	if err != nil {
		s.remember(rev, OutcomeFailed)
		return OutcomeFailed, err
	}

	outcome := OutcomePublished
	if res == cache.SetResultSkipped {
		// Another syncer replica got there first.
		outcome = OutcomeUnchanged
	}
	s.remember(rev, outcome)

	st := g.Stats()
	s.logger.Info("sync cycle completed",
		slog.String("outcome", outcome),
		slog.String("result", res.String()),
		slog.Int64("revision", rev),
		slog.String("checksum", g.Checksum()),
		slog.Int("groups", st.Groups),
		slog.Int("rules", st.Rules),
	)
	return outcome, nil
}

func (s *Service) remember(rev int64, outcome string) {
	s.lastRevision = rev
	s.lastOutcome = outcome
}

// publishWithRetry retries transient publish failures with doubling
// backoff, bounded by ctx.
func (s *Service) publishWithRetry(ctx context.Context, snap cache.Snapshot) (cache.SetResult, error) {
	res := cache.SetResultSkipped
	err := retry.Do(logger.WithContext(ctx, s.logger), "snapshot publish", retry.Policy{
		Attempts: s.config.MaxRetries + 1,
		Backoff:  s.config.BaseRetryDelay,
	}, func(ctx context.Context) error {
		var err error
		res, err = s.publisher.Publish(ctx, snap)
		return err
	})
	return res, err
}
