package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/switchboard/internal/observability"
	"github.com/rafaeljc/switchboard/internal/ruleengine"
)

// DecisionCache is the data plane L1 cache of resolved feature values,
// built on otter's contention-free S3-FIFO cache.
//
// Entries are keyed by generation id and the canonical context, so a reload
// makes every older entry unreachable without an explicit purge. The TTL
// bounds how long those orphans hold memory.
type DecisionCache struct {
	store otter.Cache[string, map[string]any]
}

// NewDecisionCache initializes the cache with strict limits.
// capacity: Max number of entries (Hard Cap to prevent OOM).
// ttl: Time-To-Live for entries.
func NewDecisionCache(capacity int, ttl time.Duration) (*DecisionCache, error) {
	store, err := otter.MustBuilder[string, map[string]any](capacity).
		CollectStats().
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}

	return &DecisionCache{store: store}, nil
}

func decisionKey(generation uint64, ctx ruleengine.Context) string {
	return strconv.FormatUint(generation, 10) + "|" + ctx.Key()
}

// Get returns the cached values for ctx under generation. The map is shared
// and must not be modified.
func (c *DecisionCache) Get(generation uint64, ctx ruleengine.Context) (map[string]any, bool) {
	values, ok := c.store.Get(decisionKey(generation, ctx))
	if ok {
		observability.DataPlaneCacheHits.Inc()
	} else {
		observability.DataPlaneCacheMisses.Inc()
	}
	return values, ok
}

// Set stores values for ctx under generation. The cache takes ownership of
// values. It reports false when the write was dropped under contention.
func (c *DecisionCache) Set(generation uint64, ctx ruleengine.Context, values map[string]any) bool {
	return c.store.Set(decisionKey(generation, ctx), values)
}

// Len returns the number of cached entries.
func (c *DecisionCache) Len() int {
	return c.store.Size()
}

// Clear drops every entry.
func (c *DecisionCache) Clear() {
	c.store.Clear()
}

// RunMetricsCollector publishes size, eviction and drop counters every
// interval until ctx is cancelled.
func (c *DecisionCache) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastEvicted, lastRejected int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := c.store.Stats()
			observability.DataPlaneCacheUsage.Set(float64(c.store.Size()))
			if d := st.EvictedCount() - lastEvicted; d > 0 {
				observability.DataPlaneCacheEvictions.Add(float64(d))
			}
			if d := st.RejectedSets() - lastRejected; d > 0 {
				observability.DataPlaneCacheDropped.Add(float64(d))
			}
			lastEvicted = st.EvictedCount()
			lastRejected = st.RejectedSets()
		}
	}
}

// Close gracefully shuts down the cache and its background cleanup goroutines.
func (c *DecisionCache) Close() {
	c.store.Close()
}
