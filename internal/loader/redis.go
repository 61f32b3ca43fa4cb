package loader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rafaeljc/switchboard/internal/cache"
)

// SnapshotReader is the part of cache.SnapshotStore the data plane reads.
type SnapshotReader interface {
	Latest(ctx context.Context) (*cache.Snapshot, error)
	Subscribe(ctx context.Context, fn func(cache.Notice)) error
}

// RedisSource keeps an engine in step with the snapshots the syncer
// publishes: it loads the latest one at startup, then reloads on every
// notice. A periodic resync covers notices lost while disconnected.
type RedisSource struct {
	logger   *slog.Logger
	store    SnapshotReader
	engine   Engine
	resync   time.Duration
	retry    time.Duration
	lastSeen int64
}

// NewRedisSource creates a source. resync <= 0 disables the periodic resync.
func NewRedisSource(logger *slog.Logger, store SnapshotReader, engine Engine, resync time.Duration) *RedisSource {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		panic("loader: snapshot store cannot be nil")
	}
	if engine == nil {
		panic("loader: engine cannot be nil")
	}
	return &RedisSource{
		logger:   logger,
		store:    store,
		engine:   engine,
		resync:   resync,
		retry:    time.Second,
		lastSeen: -1,
	}
}

// Sync loads the latest snapshot if it is newer than the last one applied.
// Only one goroutine may call Sync at a time; Run serializes its calls.
func (s *RedisSource) Sync(ctx context.Context) error {
	snap, err := s.store.Latest(ctx)
	if errors.Is(err, cache.ErrNoSnapshot) {
		s.logger.Warn("no rules snapshot published yet")
		return nil
	}
	if err != nil {
		return err
	}
	if snap.Version <= s.lastSeen {
		return nil
	}

	if snap.Checksum != "" && snap.Checksum == s.engine.Current().Checksum() {
		s.lastSeen = snap.Version
		return nil
	}

	if _, err := s.engine.Reload(snap.Definition); err != nil {
		// Remember the version so a bad snapshot is not rebuilt on every notice.
		s.lastSeen = snap.Version
		return err
	}
	s.lastSeen = snap.Version
	s.logger.Info("rules snapshot applied", slog.Int64("version", snap.Version))
	return nil
}

// Run syncs once, then follows notices until ctx is cancelled.
func (s *RedisSource) Run(ctx context.Context) error {
	notices := make(chan cache.Notice, 1)

	if err := s.Sync(ctx); err != nil {
		s.logger.Error("initial snapshot load failed", slog.String("error", err.Error()))
	}

	go s.subscribe(ctx, notices)

	var tick <-chan time.Time
	if s.resync > 0 {
		ticker := time.NewTicker(s.resync)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-notices:
			if n.Version <= s.lastSeen {
				continue
			}
		case <-tick:
		}
		if err := s.Sync(ctx); err != nil {
			s.logger.Error("snapshot sync failed", slog.String("error", err.Error()))
		}
	}
}

// subscribe forwards notices to Run, resubscribing after connection loss.
// Only the newest pending notice matters, so older ones are dropped.
func (s *RedisSource) subscribe(ctx context.Context, out chan cache.Notice) {
	forward := func(n cache.Notice) {
		select {
		case out <- n:
		default:
			select {
			case <-out:
			default:
			}
			out <- n
		}
	}

	for ctx.Err() == nil {
		err := s.store.Subscribe(ctx, forward)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("snapshot subscription lost, retrying",
				slog.String("error", err.Error()),
				slog.Duration("backoff", s.retry),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retry):
		}
		// Catch up on anything published while disconnected.
		forward(cache.Notice{Version: 1<<63 - 1})
	}
}
