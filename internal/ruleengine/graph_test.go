package ruleengine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func internAll(t *testing.T, conditions ...string) (*Graph, []NodeID) {
	t.Helper()

	b := newGraphBuilder(newRegistry(&schema{}))
	ids := make([]NodeID, len(conditions))
	for i, c := range conditions {
		expr, err := Parse(c)
		require.NoError(t, err)
		ids[i], err = b.intern(expr)
		require.NoError(t, err)
	}
	return b.finish(), ids
}

func TestGraph_HashConsing(t *testing.T) {
	t.Parallel()

	t.Run("Identical conditions share one root", func(t *testing.T) {
		g, ids := internAll(t,
			"device == 'iOS' AND appVersion >= '2.0.0'",
			"device=='iOS' and appVersion>=\"2.0.0\"",
		)

		assert.Equal(t, ids[0], ids[1])
		assert.Equal(t, 3, g.Stats().Nodes)
		assert.Equal(t, 2, g.Stats().Leaves)
		assert.Equal(t, 6, g.Stats().References)
		assert.Equal(t, 3, g.Stats().Shared)
	})

	t.Run("Shared subquery inside different conditions", func(t *testing.T) {
		g, ids := internAll(t,
			"(country == 'CA' AND age >= 18) OR beta == true",
			"plan == 'pro' AND (country == 'CA' AND age >= 18)",
		)

		assert.NotEqual(t, ids[0], ids[1])
		// country, age, AND, beta, OR, plan, AND
		assert.Equal(t, 7, g.Stats().Nodes)
		assert.Equal(t, g.nodes[ids[0]].left, g.nodes[ids[1]].right)
	})

	t.Run("Operand kind is part of the identity", func(t *testing.T) {
		_, ids := internAll(t, "tier == 2", "tier == '2'")
		assert.NotEqual(t, ids[0], ids[1])
	})

	t.Run("Operand order is part of the identity", func(t *testing.T) {
		_, ids := internAll(t, "a == 1 AND b == 2", "b == 2 AND a == 1", "a == 1 OR b == 2")
		assert.NotEqual(t, ids[0], ids[1])
		assert.NotEqual(t, ids[0], ids[2])
	})

	t.Run("Describe renders the canonical condition", func(t *testing.T) {
		g, ids := internAll(t, "a == 1 AND (b == 'x' OR c > 2)")
		assert.Equal(t, `(a == 1 AND (b == "x" OR c > 2))`, g.Describe(ids[0]))
	})
}

func TestGraph_Eval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		condition string
		ctx       Context
		want      bool
	}{
		{name: "AND both true", condition: "a == 1 AND b == 2", ctx: Context{"a": NumberValue(1), "b": NumberValue(2)}, want: true},
		{name: "AND one false", condition: "a == 1 AND b == 2", ctx: Context{"a": NumberValue(1), "b": NumberValue(3)}, want: false},
		{name: "OR one true", condition: "a == 1 OR b == 2", ctx: Context{"a": NumberValue(0), "b": NumberValue(2)}, want: true},
		{name: "OR both false", condition: "a == 1 OR b == 2", ctx: Context{"a": NumberValue(0), "b": NumberValue(0)}, want: false},
		{name: "Nested", condition: "(a == 1 OR b == 2) AND (c == 3 OR a == 0)", ctx: Context{"a": NumberValue(0), "b": NumberValue(2)}, want: true},
		{name: "Missing attribute is false", condition: "missing == 'x'", ctx: Context{}, want: false},
		{name: "Missing attribute inside OR", condition: "missing == 'x' OR a == 1", ctx: Context{"a": NumberValue(1)}, want: true},
		{name: "Negation of missing attribute is still false", condition: "missing != 'x'", ctx: Context{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, ids := internAll(t, tt.condition)
			assert.Equal(t, tt.want, g.Eval(ids[0], tt.ctx, NewCache(g)))
		})
	}
}

func TestGraph_Eval_ShortCircuit(t *testing.T) {
	t.Parallel()

	g, ids := internAll(t, "a == 1 AND b == 2", "a == 0 OR c == 3")

	c := NewCache(g)
	assert.False(t, g.Eval(ids[0], Context{"a": NumberValue(0)}, c))
	assert.Equal(t, 2, c.Misses, "right operand of AND must not be evaluated")
	assert.Equal(t, 0, c.MissingAttributes)

	c = NewCache(g)
	assert.True(t, g.Eval(ids[1], Context{"a": NumberValue(0)}, c))
	assert.Equal(t, 0, c.MissingAttributes, "right operand of OR must not be evaluated")
}

func TestGraph_Eval_CacheSharing(t *testing.T) {
	t.Parallel()

	g, ids := internAll(t,
		"country == 'CA' AND age >= 18",
		"country == 'CA' AND age >= 18",
		"(country == 'CA' AND age >= 18) OR plan == 'pro'",
	)
	ctx := Context{"country": StringValue("CA"), "age": NumberValue(30)}
	c := NewCache(g)

	assert.True(t, g.Eval(ids[0], ctx, c))
	assert.Equal(t, 0, c.Hits)
	assert.Equal(t, 3, c.Misses)

	assert.True(t, g.Eval(ids[1], ctx, c))
	assert.Equal(t, 1, c.Hits, "second encounter must be a cache hit")
	assert.Equal(t, 3, c.Misses)

	assert.True(t, g.Eval(ids[2], ctx, c))
	assert.Equal(t, 2, c.Hits)
	assert.Equal(t, 4, c.Misses, "only the OR node is new")

	result, known := c.Known(ids[0])
	assert.True(t, known)
	assert.True(t, result)
}

func TestGraph_Eval_DeepCondition(t *testing.T) {
	t.Parallel()

	const depth = 20000
	var b strings.Builder
	for i := range depth {
		if i > 0 {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "a%d == %d", i%10, i%10)
	}
	expr, err := Parse(b.String())
	require.NoError(t, err)

	builder := newGraphBuilder(newRegistry(&schema{}))
	root, err := builder.intern(expr)
	require.NoError(t, err)
	g := builder.finish()

	ctx := Context{}
	for i := range 10 {
		ctx[fmt.Sprintf("a%d", i)] = NumberValue(float64(i))
	}
	assert.True(t, g.Eval(root, ctx, NewCache(g)))
}
