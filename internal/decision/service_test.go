package decision_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/switchboard/internal/cache"
	"github.com/rafaeljc/switchboard/internal/decision"
	"github.com/rafaeljc/switchboard/internal/ruleengine"
)

func colors() ruleengine.Definition {
	return ruleengine.Definition{Groups: []ruleengine.GroupDefinition{{
		Name:     "colors",
		Defaults: map[string]any{"backgroundColor": "black"},
		Rules: []ruleengine.RuleDefinition{{
			Description: "canada",
			Priority:    49,
			Condition:   "countryCode == 'CA'",
			Features:    map[string]any{"backgroundColor": "white"},
		}},
	}}}
}

func newService(t *testing.T, withCache bool) (*decision.Service, *ruleengine.Engine) {
	t.Helper()
	engine := ruleengine.New(nil)
	_, err := engine.Reload(colors())
	require.NoError(t, err)

	var decisions *cache.DecisionCache
	if withCache {
		decisions, err = cache.NewDecisionCache(100, time.Minute)
		require.NoError(t, err)
		t.Cleanup(decisions.Close)
	}
	return decision.NewService(engine, decisions), engine
}

func TestService_Evaluate(t *testing.T) {
	t.Run("Resolves values", func(t *testing.T) {
		svc, engine := newService(t, false)

		got, err := svc.Evaluate(map[string]any{"countryCode": "CA"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"backgroundColor": "white"}, got.Values)
		assert.Equal(t, engine.Current().ID(), got.Generation)
		assert.False(t, got.Cached)
	})

	t.Run("Serves repeated contexts from the cache", func(t *testing.T) {
		svc, _ := newService(t, true)
		attrs := map[string]any{"countryCode": "CA", "device": "iOS"}

		first, err := svc.Evaluate(attrs)
		require.NoError(t, err)
		assert.False(t, first.Cached)

		// otter applies writes asynchronously.
		require.Eventually(t, func() bool {
			got, err := svc.Evaluate(attrs)
			return err == nil && got.Cached
		}, time.Second, 5*time.Millisecond)

		second, err := svc.Evaluate(map[string]any{"device": "iOS", "countryCode": "CA"})
		require.NoError(t, err)
		assert.Equal(t, first.Values, second.Values)
	})

	t.Run("Reload bypasses cached decisions", func(t *testing.T) {
		svc, engine := newService(t, true)
		attrs := map[string]any{"countryCode": "CA"}

		_, err := svc.Evaluate(attrs)
		require.NoError(t, err)

		def := colors()
		def.Groups[0].Rules[0].Features["backgroundColor"] = "red"
		_, err = engine.Reload(def)
		require.NoError(t, err)

		got, err := svc.Evaluate(attrs)
		require.NoError(t, err)
		assert.Equal(t, "red", got.Values["backgroundColor"])
		assert.Equal(t, engine.Current().ID(), got.Generation)
	})

	t.Run("Rejects non-scalar attributes", func(t *testing.T) {
		svc, _ := newService(t, false)

		_, err := svc.Evaluate(map[string]any{"tags": []any{"a", "b"}})
		var invalid *decision.InvalidContextError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, err.Error(), "tags")
	})

	t.Run("Not ready before the first load", func(t *testing.T) {
		svc := decision.NewService(ruleengine.New(nil), nil)

		_, err := svc.Evaluate(map[string]any{"countryCode": "CA"})
		assert.ErrorIs(t, err, decision.ErrNotReady)
		assert.False(t, svc.Ready())
	})
}

func TestService_Explain(t *testing.T) {
	svc, _ := newService(t, true)

	res, err := svc.Explain(map[string]any{"countryCode": "CA"})
	require.NoError(t, err)
	require.Len(t, res.Decisions, 1)
	assert.Equal(t, "canada", res.Decisions[0].Rule)
	assert.True(t, res.Decisions[0].Matched)
	assert.Equal(t, 49, res.Decisions[0].Priority)

	info := svc.Generation()
	assert.Equal(t, []string{"colors"}, info.Groups)
	assert.Equal(t, res.Generation, info.ID)
}

func TestNewService_PanicsOnNilEngine(t *testing.T) {
	var engine *ruleengine.Engine
	assert.Panics(t, func() { decision.NewService(engine, nil) })
}
