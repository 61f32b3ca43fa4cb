package ruleengine

import (
	"fmt"
)

// NodeID addresses a node in a Graph's arena. IDs are dense, starting at 0.
type NodeID int32

type nodeKind uint8

const (
	nodeLeaf nodeKind = iota + 1
	nodeAnd
	nodeOr
)

func (k nodeKind) String() string {
	switch k {
	case nodeLeaf:
		return "leaf"
	case nodeAnd:
		return "AND"
	case nodeOr:
		return "OR"
	default:
		return "invalid"
	}
}

// node is a closed variant: leaves carry an index and a compiled operand,
// And/Or nodes carry exactly two children.
type node struct {
	kind nodeKind

	// leaf
	index   Index
	operand any
	label   string

	// And / Or
	left, right NodeID
}

// leafKey is the canonical key of a comparison. The operand kind is part of
// the key so that 2 and '2' stay distinct nodes.
type leafKey struct {
	criterion string
	operator  string
	kind      Kind
	text      string
}

// branchKey is the canonical key of an And/Or node: its tag plus the
// identities of its children, which are already canonical.
type branchKey struct {
	kind        nodeKind
	left, right NodeID
}

// Graph is the deduplicated DAG of every rule condition in a generation.
// It is immutable once built and safe for concurrent evaluation.
type Graph struct {
	nodes []node
	stats GraphStats
}

// GraphStats summarises how much sharing hash-consing achieved.
type GraphStats struct {
	// Nodes is the number of distinct nodes in the arena.
	Nodes int `json:"nodes"`
	// Leaves is the number of distinct comparisons.
	Leaves int `json:"leaves"`
	// References is the number of AST nodes interned, i.e. what the arena
	// would hold without sharing.
	References int `json:"references"`
	// Shared is References - Nodes.
	Shared int `json:"shared"`
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Stats returns the dedup statistics recorded at build time.
func (g *Graph) Stats() GraphStats { return g.stats }

// Describe renders the subgraph rooted at id as a condition string.
func (g *Graph) Describe(id NodeID) string {
	n := &g.nodes[id]
	if n.kind == nodeLeaf {
		return n.label
	}
	return fmt.Sprintf("(%s %s %s)", g.Describe(n.left), n.kind, g.Describe(n.right))
}

// graphBuilder hash-conses ASTs into a Graph. It only lives during Build.
type graphBuilder struct {
	graph    *Graph
	registry *registry
	leaves   map[leafKey]NodeID
	branches map[branchKey]NodeID
}

func newGraphBuilder(r *registry) *graphBuilder {
	return &graphBuilder{
		graph:    &Graph{},
		registry: r,
		leaves:   make(map[leafKey]NodeID),
		branches: make(map[branchKey]NodeID),
	}
}

// intern adds e to the graph bottom-up and returns its canonical node.
// Schema problems (unknown criterion, unsupported operator, bad operand)
// surface here as *SchemaError.
func (b *graphBuilder) intern(e Expr) (NodeID, error) {
	b.graph.stats.References++

	switch t := e.(type) {
	case *Comparison:
		return b.internLeaf(t)
	case *And:
		return b.internBranch(nodeAnd, t.Left, t.Right)
	case *Or:
		return b.internBranch(nodeOr, t.Left, t.Right)
	default:
		return 0, fmt.Errorf("unsupported expression type %T", e)
	}
}

func (b *graphBuilder) internLeaf(c *Comparison) (NodeID, error) {
	key := leafKey{
		criterion: c.Criterion,
		operator:  c.Operator,
		kind:      c.Operand.Kind(),
		text:      c.Operand.Text(),
	}
	if id, ok := b.leaves[key]; ok {
		return id, nil
	}

	idx, err := b.registry.getOrCreate(c.Criterion, c.Operator)
	if err != nil {
		return 0, err
	}
	compiled, err := idx.Compile(c.Operand)
	if err != nil {
		return 0, err
	}

	id := b.add(node{kind: nodeLeaf, index: idx, operand: compiled, label: c.String()})
	b.leaves[key] = id
	b.graph.stats.Leaves++
	return id, nil
}

func (b *graphBuilder) internBranch(kind nodeKind, l, r Expr) (NodeID, error) {
	left, err := b.intern(l)
	if err != nil {
		return 0, err
	}
	right, err := b.intern(r)
	if err != nil {
		return 0, err
	}

	key := branchKey{kind: kind, left: left, right: right}
	if id, ok := b.branches[key]; ok {
		return id, nil
	}
	id := b.add(node{kind: kind, left: left, right: right})
	b.branches[key] = id
	return id, nil
}

func (b *graphBuilder) add(n node) NodeID {
	b.graph.nodes = append(b.graph.nodes, n)
	return NodeID(len(b.graph.nodes) - 1)
}

// finish seals the graph.
func (b *graphBuilder) finish() *Graph {
	g := b.graph
	g.stats.Nodes = len(g.nodes)
	g.stats.Shared = g.stats.References - g.stats.Nodes
	b.leaves, b.branches = nil, nil
	return g
}
