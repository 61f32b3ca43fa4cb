package ruleengine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
)

// Definition is the loader-facing input of Build: an optional criteria
// schema plus every feature-switch group.
type Definition struct {
	Criteria []CriterionDefinition `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	Groups   []GroupDefinition     `json:"groups" yaml:"groups"`
}

// GroupDefinition declares the features a group owns (the keys of Defaults)
// and the rules that may override them.
type GroupDefinition struct {
	Name     string           `json:"name" yaml:"name"`
	Defaults map[string]any   `json:"defaults" yaml:"defaults"`
	Rules    []RuleDefinition `json:"rules" yaml:"rules"`
}

// RuleDefinition sets every feature of its group when Condition holds.
// Higher Priority wins; on a tie the later declaration wins.
type RuleDefinition struct {
	Description string         `json:"description" yaml:"description"`
	Priority    int            `json:"priority" yaml:"priority"`
	Features    map[string]any `json:"features" yaml:"features"`
	Condition   string         `json:"condition" yaml:"condition"`
}

// Generation is one immutable, fully validated snapshot of all groups, the
// shared query graph and its indexes.
type Generation struct {
	id       uint64
	checksum string
	groups   []group
	graph    *Graph
	indexes  []IndexInfo
	stats    GenerationStats
}

// GenerationStats describes the size of a generation.
type GenerationStats struct {
	Groups   int        `json:"groups"`
	Rules    int        `json:"rules"`
	Features int        `json:"features"`
	Indexes  int        `json:"indexes"`
	Graph    GraphStats `json:"graph"`
}

// GenerationInfo is the read-only summary exposed to operators.
type GenerationInfo struct {
	ID       uint64          `json:"id"`
	Checksum string          `json:"checksum"`
	Groups   []string        `json:"groups"`
	Indexes  []IndexInfo     `json:"indexes"`
	Stats    GenerationStats `json:"stats"`
}

var generationSeq atomic.Uint64

// ID is unique per process and increases with every Build.
func (g *Generation) ID() uint64 { return g.id }

// Checksum is the SHA-256 of the canonical JSON form of the definition.
// Equal definitions have equal checksums.
func (g *Generation) Checksum() string { return g.checksum }

// Stats returns the generation size counters.
func (g *Generation) Stats() GenerationStats { return g.stats }

// Graph returns the shared query graph.
func (g *Generation) Graph() *Graph { return g.graph }

// Empty reports whether the generation has no groups.
func (g *Generation) Empty() bool { return len(g.groups) == 0 }

// Info returns a summary of the generation.
func (g *Generation) Info() GenerationInfo {
	names := make([]string, len(g.groups))
	for i := range g.groups {
		names[i] = g.groups[i].name
	}
	return GenerationInfo{
		ID:       g.id,
		Checksum: g.checksum,
		Groups:   names,
		Indexes:  slices.Clone(g.indexes),
		Stats:    g.stats,
	}
}

// Evaluate resolves every group against ctx.
func (g *Generation) Evaluate(ctx Context) map[string]any {
	return g.evaluate(ctx, false).Values
}

// Explain resolves every group against ctx and reports each decision.
func (g *Generation) Explain(ctx Context) Result {
	return g.evaluate(ctx, true)
}

// Checksum returns the checksum Build would assign to def without building
// it. The syncer uses it to skip publishing unchanged definitions.
func Checksum(def Definition) (string, error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("failed to encode definition: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Build validates def and compiles it into a Generation.
//
// It fails with *SchemaError when a group name is empty or repeated, a
// group has no defaults, a feature value is not a scalar, a rule does not
// set exactly the group's features, two groups own the same feature or a
// condition violates the criteria schema. Conditions that do not parse fail
// with *RuleError wrapping *SyntaxError.
func Build(def Definition) (*Generation, error) {
	sch, err := newSchema(def.Criteria)
	if err != nil {
		return nil, err
	}
	checksum, err := Checksum(def)
	if err != nil {
		return nil, err
	}

	reg := newRegistry(sch)
	builder := newGraphBuilder(reg)
	owners := make(map[string]string)
	seen := make(map[string]struct{}, len(def.Groups))
	groups := make([]group, 0, len(def.Groups))
	ruleCount := 0

	for _, gd := range def.Groups {
		name := strings.TrimSpace(gd.Name)
		if name == "" {
			return nil, &SchemaError{Msg: "group name is required"}
		}
		if _, dup := seen[name]; dup {
			return nil, &SchemaError{Group: name, Msg: "group declared twice"}
		}
		seen[name] = struct{}{}

		gr, err := compileGroup(name, gd, builder, owners)
		if err != nil {
			return nil, err
		}
		ruleCount += len(gr.rules)
		groups = append(groups, gr)
	}

	graph := builder.finish()
	indexes := reg.list()
	return &Generation{
		id:       generationSeq.Add(1),
		checksum: checksum,
		groups:   groups,
		graph:    graph,
		indexes:  indexes,
		stats: GenerationStats{
			Groups:   len(groups),
			Rules:    ruleCount,
			Features: len(owners),
			Indexes:  len(indexes),
			Graph:    graph.Stats(),
		},
	}, nil
}

func compileGroup(name string, gd GroupDefinition, b *graphBuilder, owners map[string]string) (group, error) {
	if len(gd.Defaults) == 0 {
		return group{}, &SchemaError{Group: name, Msg: "defaults must declare at least one feature"}
	}

	defaults, err := scalars(gd.Defaults)
	if err != nil {
		return group{}, &SchemaError{Group: name, Msg: "defaults: " + err.Error()}
	}
	features := make([]string, 0, len(defaults))
	for f := range defaults {
		features = append(features, f)
	}
	sort.Strings(features)

	for _, f := range features {
		if owner, taken := owners[f]; taken {
			return group{}, &SchemaError{Group: name, Msg: fmt.Sprintf("feature %q is already owned by group %q", f, owner)}
		}
		owners[f] = name
	}

	gr := group{name: name, features: features, defaults: defaults, rules: make([]rule, 0, len(gd.Rules))}
	for i, rd := range gd.Rules {
		r, err := compileRule(name, i, rd, features, b)
		if err != nil {
			return group{}, err
		}
		gr.rules = append(gr.rules, r)
	}

	// Stable sort keeps declaration order among equal priorities, so the
	// later declaration sits higher and wins.
	sort.SliceStable(gr.rules, func(i, j int) bool {
		return gr.rules[i].priority < gr.rules[j].priority
	})
	return gr, nil
}

func compileRule(groupName string, i int, rd RuleDefinition, features []string, b *graphBuilder) (rule, error) {
	name := strings.TrimSpace(rd.Description)
	if name == "" {
		name = fmt.Sprintf("#%d", i)
	}

	values, err := scalars(rd.Features)
	if err != nil {
		return rule{}, &SchemaError{Group: groupName, Rule: name, Msg: "features: " + err.Error()}
	}
	if msg := coverage(features, values); msg != "" {
		return rule{}, &SchemaError{Group: groupName, Rule: name, Msg: msg}
	}

	expr, err := Parse(rd.Condition)
	if err != nil {
		return rule{}, &RuleError{Group: groupName, Rule: name, Err: err}
	}
	root, err := b.intern(expr)
	if err != nil {
		var se *SchemaError
		if errors.As(err, &se) {
			located := *se
			located.Group, located.Rule = groupName, name
			return rule{}, &located
		}
		return rule{}, &RuleError{Group: groupName, Rule: name, Err: err}
	}

	return rule{
		name:      name,
		priority:  rd.Priority,
		order:     i,
		condition: expr.String(),
		values:    values,
		root:      root,
	}, nil
}

// coverage describes how values differs from the declared feature set, or
// returns "" when they match exactly.
func coverage(features []string, values map[string]any) string {
	var missing, extra []string
	for _, f := range features {
		if _, ok := values[f]; !ok {
			missing = append(missing, f)
		}
	}
	for f := range values {
		if _, ok := slices.BinarySearch(features, f); !ok {
			extra = append(extra, f)
		}
	}
	sort.Strings(extra)

	switch {
	case len(missing) > 0 && len(extra) > 0:
		return fmt.Sprintf("rule must set exactly the group features: missing %v, unexpected %v", missing, extra)
	case len(missing) > 0:
		return fmt.Sprintf("rule must set exactly the group features: missing %v", missing)
	case len(extra) > 0:
		return fmt.Sprintf("rule must set exactly the group features: unexpected %v", extra)
	default:
		return ""
	}
}

// scalars normalizes feature values to string, float64 or bool.
func scalars(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, raw := range in {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("feature name is required")
		}
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", k, err)
		}
		out[k] = v.Interface()
	}
	return out, nil
}
