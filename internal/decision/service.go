// Package decision is the read path shared by the gRPC and HTTP transports:
// it turns request attributes into a context, serves repeated contexts from
// the L1 decision cache and falls back to the rule engine.
package decision

import (
	"errors"

	"github.com/rafaeljc/switchboard/internal/cache"
	"github.com/rafaeljc/switchboard/internal/ruleengine"
	"github.com/rafaeljc/switchboard/internal/validation"
)

// ErrNotReady is returned until the engine has loaded a non-empty generation.
var ErrNotReady = errors.New("rules not loaded yet")

// InvalidContextError reports request attributes that cannot form a context.
type InvalidContextError struct {
	Err error
}

func (e *InvalidContextError) Error() string { return "invalid context: " + e.Err.Error() }

func (e *InvalidContextError) Unwrap() error { return e.Err }

// Engine is the part of ruleengine.Engine the read path needs.
type Engine interface {
	Ready() bool
	Current() *ruleengine.Generation
	Resolve(ctx ruleengine.Context) ruleengine.Result
	Explain(ctx ruleengine.Context) ruleengine.Result
}

// Service resolves feature values for request attributes.
type Service struct {
	engine Engine
	cache  *cache.DecisionCache
}

// NewService creates a Service. A nil decisions cache disables caching.
func NewService(engine Engine, decisions *cache.DecisionCache) *Service {
	validation.AssertNotNil(engine, "rule engine")
	return &Service{engine: engine, cache: decisions}
}

// Evaluation is the answer to one Evaluate call.
type Evaluation struct {
	Generation uint64
	// Values is shared with the decision cache and must not be modified.
	Values map[string]any
	Cached bool
}

// Evaluate resolves every feature for attrs.
func (s *Service) Evaluate(attrs map[string]any) (Evaluation, error) {
	ctx, err := s.prepare(attrs)
	if err != nil {
		return Evaluation{}, err
	}

	if s.cache != nil {
		gen := s.engine.Current().ID()
		if values, ok := s.cache.Get(gen, ctx); ok {
			return Evaluation{Generation: gen, Values: values, Cached: true}, nil
		}
	}

	res := s.engine.Resolve(ctx)
	if s.cache != nil {
		// Dropped writes are counted by the cache metrics collector.
		s.cache.Set(res.Generation, ctx, res.Values)
	}
	return Evaluation{Generation: res.Generation, Values: res.Values}, nil
}

// Explain resolves attrs and reports the decision behind every group. It
// always runs the engine.
func (s *Service) Explain(attrs map[string]any) (ruleengine.Result, error) {
	ctx, err := s.prepare(attrs)
	if err != nil {
		return ruleengine.Result{}, err
	}
	return s.engine.Explain(ctx), nil
}

// Generation returns the summary of the live generation.
func (s *Service) Generation() ruleengine.GenerationInfo {
	return s.engine.Current().Info()
}

// Ready reports whether requests can be served.
func (s *Service) Ready() bool {
	return s.engine.Ready()
}

func (s *Service) prepare(attrs map[string]any) (ruleengine.Context, error) {
	if !s.engine.Ready() {
		return nil, ErrNotReady
	}
	ctx, err := ruleengine.NewContext(attrs)
	if err != nil {
		return nil, &InvalidContextError{Err: err}
	}
	return ctx, nil
}
