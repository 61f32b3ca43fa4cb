package ruleengine

import (
	"fmt"
	"sort"
)

// Index is the evaluation strategy bound to one (criterion, operator) pair.
// It is stateless with respect to contexts, so one instance serves every
// comparison node sharing the pair and every concurrent evaluation.
type Index interface {
	// Criterion returns the attribute name the index reads from the context.
	Criterion() string

	// Operator returns the operator the index implements.
	Operator() string

	// Compile validates an operand at build time and converts it into the
	// structure Evaluate expects (a normalized Value, a set, a bucket rule).
	Compile(operand Value) (any, error)

	// Evaluate tests the context against a compiled operand.
	// It returns *MissingAttributeError when the context lacks the criterion.
	Evaluate(operand any, ctx Context) (bool, error)
}

type indexKey struct {
	criterion string
	operator  string
}

// registry creates one Index per (criterion, operator) pair on first use and
// caches it for the lifetime of a generation. It is only written during the
// build; afterwards it is read-only.
type registry struct {
	schema  *schema
	indexes map[indexKey]Index
}

func newRegistry(s *schema) *registry {
	return &registry{schema: s, indexes: make(map[indexKey]Index)}
}

// getOrCreate returns the index for the pair, creating it if needed.
// Unknown criteria (strict schema) and operators the criterion kind does not
// support are reported as *SchemaError.
func (r *registry) getOrCreate(criterion, operator string) (Index, error) {
	key := indexKey{criterion: criterion, operator: operator}
	if idx, ok := r.indexes[key]; ok {
		return idx, nil
	}

	kind, err := r.schema.kindOf(criterion)
	if err != nil {
		return nil, err
	}
	if !kind.allows(operator) {
		return nil, &SchemaError{Msg: fmt.Sprintf("operator %q is not supported for %s criterion %q", operator, kind, criterion)}
	}

	idx, err := newIndex(criterion, operator, kind)
	if err != nil {
		return nil, err
	}
	r.indexes[key] = idx
	return idx, nil
}

func newIndex(criterion, operator string, kind CriterionKind) (Index, error) {
	switch operator {
	case OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		return &compareIndex{criterion: criterion, operator: operator, kind: kind}, nil
	case OpOneOf:
		return &setIndex{criterion: criterion, kind: kind}, nil
	case OpRandomlySelected:
		return &bucketIndex{criterion: criterion}, nil
	default:
		return nil, &SchemaError{Msg: fmt.Sprintf("no index implements operator %q", operator)}
	}
}

// IndexInfo describes one registered index.
type IndexInfo struct {
	Criterion string `json:"criterion"`
	Operator  string `json:"operator"`
}

// list returns the registered pairs in a stable order.
func (r *registry) list() []IndexInfo {
	out := make([]IndexInfo, 0, len(r.indexes))
	for k := range r.indexes {
		out = append(out, IndexInfo{Criterion: k.criterion, Operator: k.operator})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Criterion != out[j].Criterion {
			return out[i].Criterion < out[j].Criterion
		}
		return out[i].Operator < out[j].Operator
	})
	return out
}

// lookup fetches the criterion from ctx or reports it missing.
func lookup(ctx Context, criterion string) (Value, error) {
	v, ok := ctx[criterion]
	if !ok || !v.IsValid() {
		return Value{}, &MissingAttributeError{Criterion: criterion}
	}
	return v, nil
}
