package ruleengine

import (
	"maps"
)

// group is the compiled form of a GroupDefinition.
type group struct {
	name     string
	features []string
	defaults map[string]any
	// rules are sorted ascending by (priority, declaration order).
	rules []rule
}

type rule struct {
	name      string
	priority  int
	order     int
	condition string
	values    map[string]any
	root      NodeID
}

// Decision explains how one group was resolved for a context.
type Decision struct {
	Group string `json:"group"`
	// Rule is the description of the winning rule. Empty when no rule
	// matched and the defaults apply.
	Rule      string         `json:"rule,omitempty"`
	Condition string         `json:"condition,omitempty"`
	Priority  int            `json:"priority"`
	Matched   bool           `json:"matched"`
	Values    map[string]any `json:"values"`
}

// Result is the full outcome of one evaluation.
type Result struct {
	Generation uint64         `json:"generation"`
	Values     map[string]any `json:"values"`
	Decisions  []Decision     `json:"decisions"`
	Stats      EvalStats      `json:"stats"`
}

// EvalStats exposes the evaluation cache counters of one call.
type EvalStats struct {
	Hits              int `json:"cache_hits"`
	Misses            int `json:"cache_misses"`
	MissingAttributes int `json:"missing_attributes"`
	Errors            int `json:"errors"`
}

func statsOf(c *Cache) EvalStats {
	return EvalStats{
		Hits:              c.Hits,
		Misses:            c.Misses,
		MissingAttributes: c.MissingAttributes,
		Errors:            c.Errors,
	}
}

// resolveGroup returns the values of the highest (priority, declaration)
// rule whose condition holds, or the defaults when none does. Every rule
// sets the whole feature set, so the first match from the top is the same
// as applying all matches in ascending order. The returned Decision aliases
// the generation's maps; callers copy before exposing them.
func (g *Generation) resolveGroup(gr *group, ctx Context, c *Cache) Decision {
	for i := len(gr.rules) - 1; i >= 0; i-- {
		r := &gr.rules[i]
		if g.graph.Eval(r.root, ctx, c) {
			return Decision{
				Group:     gr.name,
				Rule:      r.name,
				Condition: r.condition,
				Priority:  r.priority,
				Matched:   true,
				Values:    r.values,
			}
		}
	}
	return Decision{Group: gr.name, Values: gr.defaults}
}

// evaluate resolves every group against ctx with one shared cache.
func (g *Generation) evaluate(ctx Context, explain bool) Result {
	c := NewCache(g.graph)
	res := Result{
		Generation: g.id,
		Values:     make(map[string]any, g.stats.Features),
	}
	if explain {
		res.Decisions = make([]Decision, 0, len(g.groups))
	}

	for i := range g.groups {
		d := g.resolveGroup(&g.groups[i], ctx, c)
		maps.Copy(res.Values, d.Values)
		if explain {
			d.Values = maps.Clone(d.Values)
			res.Decisions = append(res.Decisions, d)
		}
	}

	res.Stats = statsOf(c)
	return res
}
