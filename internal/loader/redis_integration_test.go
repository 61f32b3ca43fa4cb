//go:build integration

package loader_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/switchboard/internal/cache"
	"github.com/rafaeljc/switchboard/internal/loader"
	"github.com/rafaeljc/switchboard/internal/ruleengine"
	"github.com/rafaeljc/switchboard/internal/testsupport"
)

func TestRedisSource_Integration(t *testing.T) {
	ctx := context.Background()

	rc, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Terminate(context.Background()) })

	publish := func(version int64, color string) {
		def := ruleengine.Definition{Groups: []ruleengine.GroupDefinition{{
			Name:     "theme",
			Defaults: map[string]any{"backgroundColor": "white"},
			Rules: []ruleengine.RuleDefinition{{
				Description: "canada",
				Priority:    1,
				Condition:   "countryCode == 'CA'",
				Features:    map[string]any{"backgroundColor": color},
			}},
		}}}
		sum, err := ruleengine.Checksum(def)
		require.NoError(t, err)
		res, err := rc.Store.Publish(ctx, cache.Snapshot{Version: version, Checksum: sum, Definition: def})
		require.NoError(t, err)
		require.Equal(t, cache.SetResultUpdated, res)
	}

	canada := func(e *ruleengine.Engine) any {
		c, err := ruleengine.NewContext(map[string]any{"countryCode": "CA"})
		require.NoError(t, err)
		return e.Evaluate(c)["backgroundColor"]
	}

	publish(1, "red")

	engine := ruleengine.New(nil)
	src := loader.NewRedisSource(nil, rc.Store, engine, time.Minute)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = src.Run(runCtx) }()

	require.Eventually(t, func() bool { return canada(engine) == "red" }, 5*time.Second, 20*time.Millisecond)

	// Give the subscription time to attach before the next publish.
	time.Sleep(200 * time.Millisecond)
	publish(2, "blue")

	require.Eventually(t, func() bool { return canada(engine) == "blue" }, 5*time.Second, 20*time.Millisecond)
	assert.True(t, engine.Ready())
}
