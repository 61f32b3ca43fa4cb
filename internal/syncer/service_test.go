package syncer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/switchboard/internal/cache"
	"github.com/rafaeljc/switchboard/internal/config"
	"github.com/rafaeljc/switchboard/internal/ruleengine"
	"github.com/rafaeljc/switchboard/internal/syncer"
	"github.com/rafaeljc/switchboard/internal/testsupport"
)

type fakeSource struct {
	mu        sync.Mutex
	rev       int64
	def       ruleengine.Definition
	err       error
	loadCalls int
}

func (f *fakeSource) set(rev int64, def ruleengine.Definition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rev, f.def = rev, def
}

func (f *fakeSource) Revision(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rev, f.err
}

func (f *fakeSource) LoadDefinition(context.Context) (int64, ruleengine.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	return f.rev, f.def, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	failures  int // fail this many calls first
	result    cache.SetResult
	published []cache.Snapshot
}

func (f *fakePublisher) Publish(_ context.Context, snap cache.Snapshot) (cache.SetResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return cache.SetResultSkipped, errors.New("redis unavailable")
	}
	f.published = append(f.published, snap)
	return f.result, nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func validDefinition(primary string) ruleengine.Definition {
	return ruleengine.Definition{Groups: []ruleengine.GroupDefinition{{
		Name:     "colors",
		Defaults: map[string]any{"primaryColor": "blue"},
		Rules: []ruleengine.RuleDefinition{{
			Priority:  50,
			Features:  map[string]any{"primaryColor": primary},
			Condition: "countryCode == 'US'",
		}},
	}}}
}

func newService(src syncer.Source, pub syncer.Publisher) *syncer.Service {
	cfg := config.SyncerConfig{
		Interval:       10 * time.Millisecond,
		Timeout:        time.Second,
		MaxRetries:     2,
		BaseRetryDelay: time.Millisecond,
	}
	return syncer.New(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, src, pub)
}

func TestService_SyncOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("Should publish a new revision once", func(t *testing.T) {
		src := &fakeSource{}
		src.set(3, validDefinition("red"))
		pub := &fakePublisher{result: cache.SetResultUpdated}
		svc := newService(src, pub)

		assert.Equal(t, syncer.OutcomePublished, svc.SyncOnce(ctx))
		require.Equal(t, 1, pub.count())
		assert.Equal(t, int64(3), pub.published[0].Version)

		want, err := ruleengine.Checksum(validDefinition("red"))
		require.NoError(t, err)
		assert.Equal(t, want, pub.published[0].Checksum)

		assert.Equal(t, syncer.OutcomeUnchanged, svc.SyncOnce(ctx))
		assert.Equal(t, 1, pub.count(), "an unchanged revision must not be republished")
		assert.Equal(t, 1, src.loadCalls, "an unchanged revision must not be reloaded")
	})

	t.Run("Should never publish an invalid definition", func(t *testing.T) {
		src := &fakeSource{}
		bad := validDefinition("red")
		bad.Groups[0].Rules[0].Condition = "countryCode = "
		src.set(4, bad)
		pub := &fakePublisher{result: cache.SetResultUpdated}
		svc := newService(src, pub)

		assert.Equal(t, syncer.OutcomeInvalid, svc.SyncOnce(ctx))
		assert.Equal(t, 0, pub.count())

		// Fixing the definition bumps the revision and publishes.
		src.set(5, validDefinition("green"))
		assert.Equal(t, syncer.OutcomePublished, svc.SyncOnce(ctx))
		assert.Equal(t, int64(5), pub.published[0].Version)
	})

	t.Run("Should retry transient publish failures", func(t *testing.T) {
		src := &fakeSource{}
		src.set(6, validDefinition("red"))
		pub := &fakePublisher{failures: 2, result: cache.SetResultUpdated}
		svc := newService(src, pub)

		assert.Equal(t, syncer.OutcomePublished, svc.SyncOnce(ctx))
		assert.Equal(t, 1, pub.count())
	})

	t.Run("Should fail after exhausting retries and try again next cycle", func(t *testing.T) {
		src := &fakeSource{}
		src.set(7, validDefinition("red"))
		pub := &fakePublisher{failures: 3, result: cache.SetResultUpdated}
		svc := newService(src, pub)

		assert.Equal(t, syncer.OutcomeFailed, svc.SyncOnce(ctx))
		assert.Equal(t, 0, pub.count())

		assert.Equal(t, syncer.OutcomePublished, svc.SyncOnce(ctx), "a failed revision is retried even if unchanged")
	})

	t.Run("Should report unchanged when another replica already published", func(t *testing.T) {
		src := &fakeSource{}
		src.set(8, validDefinition("red"))
		pub := &fakePublisher{result: cache.SetResultSkipped}

		assert.Equal(t, syncer.OutcomeUnchanged, newService(src, pub).SyncOnce(ctx))
	})

	t.Run("Should fail when the source is unreachable", func(t *testing.T) {
		src := &fakeSource{err: errors.New("connection refused")}
		pub := &fakePublisher{}

		assert.Equal(t, syncer.OutcomeFailed, newService(src, pub).SyncOnce(ctx))
	})
}

func TestService_Metrics(t *testing.T) {
	src := &fakeSource{}
	src.set(1, validDefinition("red"))
	svc := newService(src, &fakePublisher{result: cache.SetResultUpdated})

	testsupport.AssertMetricDelta(t, testsupport.Metric("syncer", "cycles_total"), map[string]string{"status": syncer.OutcomePublished}, 1, func() {
		svc.SyncOnce(context.Background())
	})
	testsupport.AssertHistogramRecorded(t, testsupport.Metric("syncer", "cycle_duration_seconds"), nil)
}

func TestService_Run(t *testing.T) {
	src := &fakeSource{}
	src.set(1, validDefinition("red"))
	pub := &fakePublisher{result: cache.SetResultUpdated}
	svc := newService(src, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond, "startup sync")

	src.set(2, validDefinition("green"))
	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond, "tick sync")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestNew_PanicsOnMissingDependencies(t *testing.T) {
	assert.Panics(t, func() { syncer.New(nil, config.SyncerConfig{}, nil, &fakePublisher{}) })
	assert.Panics(t, func() { syncer.New(nil, config.SyncerConfig{}, &fakeSource{}, nil) })
}
