// Package ruleengine evaluates feature-switch groups against request
// contexts.
//
// Conditions are parsed into expressions, hash-consed into one shared query
// graph per generation and bound to an index per (criterion, operator)
// pair. An evaluation walks the graph once per context with a per-call
// cache, so a subquery shared by many rules is computed once. Each group
// then resolves to the values of its highest-priority matching rule, or to
// its defaults.
package ruleengine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rafaeljc/switchboard/internal/observability"
)

// ErrNotReady is reported by Check until a non-empty generation is loaded.
var ErrNotReady = errors.New("no rules loaded")

// Engine serves evaluations from the live generation and replaces it on
// reload. Reads never block: every call captures the generation pointer
// once, so an evaluation sees either the old or the new generation in full.
type Engine struct {
	current atomic.Pointer[Generation]
	loaded  atomic.Bool
	logger  *slog.Logger // Dedicated logger instance (DI)
}

// Option configures an Engine.
type Option func(*Engine)

// WithGeneration starts the engine with a prebuilt generation instead of
// the empty one.
func WithGeneration(g *Generation) Option {
	return func(e *Engine) {
		if g != nil {
			e.publish(g)
		}
	}
}

var emptyGeneration = func() *Generation {
	g, err := Build(Definition{})
	if err != nil {
		panic(err)
	}
	return g
}()

// New creates a new Engine serving an empty generation (every evaluation
// returns an empty map). If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{logger: logger}
	e.current.Store(emptyGeneration)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Current returns the live generation.
func (e *Engine) Current() *Generation {
	return e.current.Load()
}

// Reload builds def off to the side and publishes it. On failure the error
// is returned and the previous generation keeps serving.
func (e *Engine) Reload(def Definition) (*Generation, error) {
	start := time.Now()
	g, err := Build(def)
	if err != nil {
		observability.EngineReloadsTotal.WithLabelValues("fail").Inc()
		e.logger.Error("rules reload rejected, keeping current generation",
			slog.String("error", err.Error()),
			slog.Uint64("current_generation", e.Current().ID()),
		)
		return nil, err
	}

	e.publish(g)
	observability.EngineReloadsTotal.WithLabelValues("success").Inc()

	st := g.Stats()
	e.logger.Info("rules reloaded",
		slog.Uint64("generation", g.ID()),
		slog.String("checksum", g.Checksum()),
		slog.Int("groups", st.Groups),
		slog.Int("rules", st.Rules),
		slog.Int("nodes", st.Graph.Nodes),
		slog.Int("shared_nodes", st.Graph.Shared),
		slog.Int("indexes", st.Indexes),
		slog.Duration("duration", time.Since(start)),
	)
	return g, nil
}

func (e *Engine) publish(g *Generation) {
	e.current.Store(g)
	if !g.Empty() {
		e.loaded.Store(true)
	}

	st := g.Stats()
	gauge := observability.EngineGenerationInfo
	gauge.WithLabelValues("id").Set(float64(g.ID()))
	gauge.WithLabelValues("groups").Set(float64(st.Groups))
	gauge.WithLabelValues("rules").Set(float64(st.Rules))
	gauge.WithLabelValues("features").Set(float64(st.Features))
	gauge.WithLabelValues("nodes").Set(float64(st.Graph.Nodes))
	gauge.WithLabelValues("leaves").Set(float64(st.Graph.Leaves))
	gauge.WithLabelValues("shared").Set(float64(st.Graph.Shared))
	gauge.WithLabelValues("indexes").Set(float64(st.Indexes))
}

// Evaluate returns the resolved value of every feature for ctx. It never
// fails: groups with no matching rule contribute their defaults.
func (e *Engine) Evaluate(ctx Context) map[string]any {
	return e.run(ctx, false, "evaluate").Values
}

// Resolve is Evaluate that also reports which generation answered, so a
// caller can key derived state by it. Decisions are not collected.
func (e *Engine) Resolve(ctx Context) Result {
	return e.run(ctx, false, "evaluate")
}

// Explain is Evaluate plus the per-group decisions and cache counters.
func (e *Engine) Explain(ctx Context) Result {
	return e.run(ctx, true, "explain")
}

func (e *Engine) run(ctx Context, explain bool, mode string) Result {
	start := time.Now()
	res := e.current.Load().evaluate(ctx, explain)

	observability.EngineEvalDuration.Observe(time.Since(start).Seconds())
	observability.EngineEvaluationsTotal.WithLabelValues(mode).Inc()
	observability.EngineNodeCacheHits.Add(float64(res.Stats.Hits))
	observability.EngineNodeEvaluations.Add(float64(res.Stats.Misses))
	if res.Stats.MissingAttributes > 0 {
		observability.EngineMissingAttributes.Add(float64(res.Stats.MissingAttributes))
	}
	if res.Stats.Errors > 0 {
		e.logger.Warn("comparisons failed during evaluation",
			slog.Int("count", res.Stats.Errors),
			slog.Uint64("generation", res.Generation),
		)
	}
	return res
}

// Ready reports whether a non-empty generation was ever loaded.
func (e *Engine) Ready() bool {
	return e.loaded.Load()
}

// Name implements observability.Checker.
func (e *Engine) Name() string { return "rules" }

// Check implements observability.Checker.
func (e *Engine) Check(_ context.Context) error {
	if !e.Ready() {
		return ErrNotReady
	}
	return nil
}
