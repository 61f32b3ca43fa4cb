package ruleengine

import (
	"errors"
)

const (
	resultUnknown uint8 = iota
	resultFalse
	resultTrue
)

// Cache memoizes node results for exactly one context. It must not be
// shared between contexts or goroutines; create one per evaluation call.
type Cache struct {
	results []uint8
	stack   []frame

	// Hits counts nodes answered from the cache.
	Hits int
	// Misses counts nodes actually computed.
	Misses int
	// MissingAttributes counts comparisons that were false because the
	// context lacked the criterion.
	MissingAttributes int
	// Errors counts comparisons that failed for any other reason. They also
	// evaluate to false.
	Errors int
}

// NewCache returns an empty cache sized for g.
func NewCache(g *Graph) *Cache {
	return &Cache{results: make([]uint8, g.Len())}
}

// Known reports the memoized result of id, if any.
func (c *Cache) Known(id NodeID) (result, ok bool) {
	switch c.results[id] {
	case resultTrue:
		return true, true
	case resultFalse:
		return false, true
	default:
		return false, false
	}
}

func (c *Cache) store(id NodeID, v bool) {
	if v {
		c.results[id] = resultTrue
	} else {
		c.results[id] = resultFalse
	}
}

// frame is one pending node of the explicit evaluation stack.
// state 0: not visited, 1: left child done, 2: right child done.
type frame struct {
	id    NodeID
	state uint8
}

// Eval returns the boolean value of root for ctx.
//
// The walk is post-order over an explicit stack so arbitrarily deep
// conditions cannot exhaust the goroutine stack. And stops after a false
// left operand and Or after a true one. Every computed node is memoized in
// c, so a subgraph shared by many rules is computed at most once per
// context. Evaluation never fails: missing attributes and comparison errors
// make the comparison false and are counted in c.
func (g *Graph) Eval(root NodeID, ctx Context, c *Cache) bool {
	stack := append(c.stack[:0], frame{id: root})
	var res bool

	for len(stack) > 0 {
		top := len(stack) - 1
		f := stack[top]
		n := &g.nodes[f.id]

		switch f.state {
		case 0:
			if v, ok := c.Known(f.id); ok {
				c.Hits++
				res = v
				stack = stack[:top]
				continue
			}
			c.Misses++

			if n.kind == nodeLeaf {
				res = c.evalLeaf(n, ctx)
				c.store(f.id, res)
				stack = stack[:top]
				continue
			}
			stack[top].state = 1
			stack = append(stack, frame{id: n.left})

		case 1:
			if (n.kind == nodeAnd && !res) || (n.kind == nodeOr && res) {
				c.store(f.id, res)
				stack = stack[:top]
				continue
			}
			stack[top].state = 2
			stack = append(stack, frame{id: n.right})

		default:
			c.store(f.id, res)
			stack = stack[:top]
		}
	}

	c.stack = stack
	return res
}

func (c *Cache) evalLeaf(n *node, ctx Context) bool {
	ok, err := n.index.Evaluate(n.operand, ctx)
	if err != nil {
		var missing *MissingAttributeError
		if errors.As(err, &missing) {
			c.MissingAttributes++
		} else {
			c.Errors++
		}
		return false
	}
	return ok
}
