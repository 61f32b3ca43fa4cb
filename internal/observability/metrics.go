package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: All metrics are defined globally here, so every binary registers the
// full set (the syncer exposes evaluation metrics at zero and vice versa).

// namespace defines the global prefix for all metrics (e.g., switchboard_...).
const namespace = "switchboard"

// lowLatencyBuckets defines custom buckets for the data plane request path.
// Standard buckets are too coarse (starting at 5ms), so we add 1ms and 2ms resolution.
// Range: 1ms to 500ms.
var lowLatencyBuckets = []float64{.001, .002, .005, .010, .015, .020, .025, .030, .050, .100, .500}

// evalBuckets covers in-process rule evaluation, which completes in
// microseconds. Range: 1µs to 10ms.
var evalBuckets = []float64{.000001, .0000025, .000005, .00001, .000025, .00005, .0001, .00025, .0005, .001, .01}

var (
	// -------------------------------------------------------------------------
	// RULE ENGINE
	// -------------------------------------------------------------------------

	// EngineEvalDuration measures one full evaluation (all groups).
	// Metric: switchboard_engine_evaluation_seconds
	EngineEvalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "evaluation_seconds",
		Help:      "Time taken to resolve every group for one context",
		Buckets:   evalBuckets,
	})

	// EngineEvaluationsTotal counts evaluations by mode (evaluate, explain).
	EngineEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "evaluations_total",
		Help:      "Total evaluations served",
	}, []string{"mode"})

	// EngineNodeCacheHits counts graph nodes answered from the per-call cache.
	// This is the work saved by sharing subqueries between rules.
	EngineNodeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "node_cache_hits_total",
		Help:      "Total graph nodes answered from the per-evaluation cache",
	})

	// EngineNodeEvaluations counts graph nodes actually computed.
	EngineNodeEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "node_evaluations_total",
		Help:      "Total graph nodes computed",
	})

	// EngineMissingAttributes counts comparisons that evaluated false because
	// the context lacked the criterion.
	EngineMissingAttributes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "missing_attributes_total",
		Help:      "Total comparisons skipped because the context lacked the attribute",
	})

	// EngineReloadsTotal counts generation reloads.
	// Labels: status (success, fail).
	EngineReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "reloads_total",
		Help:      "Total generation reload attempts",
	}, []string{"status"})

	// EngineGenerationInfo exposes the live generation size.
	// Labels: dimension (id, groups, rules, features, nodes, leaves, shared, indexes).
	EngineGenerationInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "generation",
		Help:      "Size counters of the live generation",
	}, []string{"dimension"})

	// -------------------------------------------------------------------------
	// DATA PLANE (gRPC + HTTP + Cache)
	// -------------------------------------------------------------------------

	// DataPlaneGrpcDuration measures the latency of gRPC evaluate requests.
	// Metric: switchboard_data_plane_grpc_handling_seconds
	DataPlaneGrpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "grpc_handling_seconds",
		Help:      "Time taken to handle gRPC evaluate requests",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "code"})

	// DataPlaneGrpcTotal counts the total number of gRPC requests.
	// Metric: switchboard_data_plane_grpc_requests_total
	DataPlaneGrpcTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "grpc_requests_total",
		Help:      "Total gRPC evaluate requests",
	}, []string{"method", "code"})

	// DataPlaneHTTPDuration measures the latency of HTTP requests.
	// Metric: switchboard_data_plane_http_handling_seconds
	DataPlaneHTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "path"})

	// DataPlaneHTTPTotal counts the total number of HTTP requests.
	// Metric: switchboard_data_plane_http_requests_total
	DataPlaneHTTPTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "path", "code"})

	// --- Decision Cache L1 Metrics (Otter) ---

	DataPlaneCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "l1_cache_hits_total",
		Help:      "Total L1 decision cache hits (in-memory)",
	})

	DataPlaneCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "l1_cache_misses_total",
		Help:      "Total L1 decision cache misses",
	})

	// DataPlaneCacheEvictions tracks items removed due to capacity pressure.
	DataPlaneCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "l1_cache_evictions_total",
		Help:      "Total items evicted due to capacity",
	})

	// Otter (S3-FIFO) tracks item count efficiently, but not byte size.
	DataPlaneCacheUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "l1_cache_items_count",
		Help:      "Current number of items in the L1 decision cache",
	})

	// DataPlaneCacheDropped counts writes rejected by the cache (write buffer full).
	DataPlaneCacheDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "l1_cache_dropped_total",
		Help:      "Total L1 decision cache writes dropped under contention",
	})

	// DataPlaneSnapshotsReceived counts snapshot notifications received via PubSub.
	DataPlaneSnapshotsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "data_plane",
		Name:      "snapshots_received_total",
		Help:      "Total snapshot notifications received via PubSub",
	})

	// -------------------------------------------------------------------------
	// SYNCER (Postgres -> Redis)
	// -------------------------------------------------------------------------

	// SyncerCycleDuration measures one poll-validate-publish cycle.
	// Metric: switchboard_syncer_cycle_duration_seconds
	SyncerCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "cycle_duration_seconds",
		Help:      "Time taken by one sync cycle",
		Buckets:   prometheus.DefBuckets,
	})

	// SyncerCyclesTotal counts sync cycles.
	// Labels: status (published, unchanged, invalid, fail).
	SyncerCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "cycles_total",
		Help:      "Total sync cycles by outcome",
	}, []string{"status"})

	// -------------------------------------------------------------------------
	// DATABASE (pgxpool, sampled by RunPoolMonitor)
	// -------------------------------------------------------------------------

	// DatabasePoolConnections exposes pool occupancy.
	// Labels: state (total, idle, in_use, max).
	DatabasePoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_connections",
		Help:      "Connections in the PostgreSQL pool by state",
	}, []string{"state"})

	DatabasePoolAcquireCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_count_total",
		Help:      "Total successful connection acquisitions",
	})

	DatabasePoolAcquireDuration = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_duration_seconds_total",
		Help:      "Cumulative time spent acquiring connections",
	})

	// DatabasePoolWaitCount counts acquisitions that had to wait for a free connection.
	DatabasePoolWaitCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_wait_count_total",
		Help:      "Total acquisitions that waited because the pool was empty",
	})

	// -------------------------------------------------------------------------
	// REDIS (go-redis pool, sampled by cache.RunPoolMonitor)
	// -------------------------------------------------------------------------

	// RedisPoolConnections exposes pool occupancy.
	// Labels: state (total, idle, stale).
	RedisPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_connections",
		Help:      "Connections in the Redis pool by state",
	}, []string{"state"})

	RedisPoolHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_hits_total",
		Help:      "Total times a free connection was found in the pool",
	})

	RedisPoolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_misses_total",
		Help:      "Total times a new connection had to be dialed",
	})

	RedisPoolTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_timeouts_total",
		Help:      "Total times waiting for a connection timed out",
	})
)
