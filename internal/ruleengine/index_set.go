package ruleengine

import (
	"fmt"
	"strings"
)

const (
	// MaxSetSize limits the number of members in a single one_of operand.
	// Large lists belong in an attribute (segments) or a percentage rollout,
	// not in a condition string.
	MaxSetSize = 10_000
)

// setIndex implements one_of: membership of the context value in a literal
// list written as a comma separated string, e.g. userId one_of 'u1,u2,u3'.
type setIndex struct {
	criterion string
	kind      CriterionKind
}

func (i *setIndex) Criterion() string { return i.criterion }
func (i *setIndex) Operator() string  { return OpOneOf }

// Compile parses the operand into a map[string]struct{} for O(1) lookup.
// Members are trimmed; empty members are ignored; duplicates collapse.
func (i *setIndex) Compile(operand Value) (any, error) {
	if operand.Kind() != KindString {
		return nil, &SchemaError{Msg: fmt.Sprintf("one_of operand must be a quoted list, got %s", operand)}
	}

	parts := strings.Split(operand.Str(), ",")
	if len(parts) > MaxSetSize {
		return nil, &SchemaError{Msg: fmt.Sprintf("one_of list exceeds maximum size: %d > %d (use an attribute or a percentage rollout instead)", len(parts), MaxSetSize)}
	}

	compiled := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i.kind == CriterionNumber {
			n, ok := asNumber(StringValue(p))
			if !ok {
				return nil, &SchemaError{Msg: fmt.Sprintf("criterion %q is a number, one_of member %q is not", i.criterion, p)}
			}
			p = NumberValue(n).Text()
		}
		compiled[p] = struct{}{}
	}
	return compiled, nil
}

func (i *setIndex) Evaluate(operand any, ctx Context) (bool, error) {
	members, ok := operand.(map[string]struct{})
	if !ok {
		return false, fmt.Errorf("invalid operand type: expected map[string]struct{}, got %T", operand)
	}
	got, err := lookup(ctx, i.criterion)
	if err != nil {
		return false, err
	}

	key := got.Text()
	if i.kind == CriterionNumber {
		n, ok := asNumber(got)
		if !ok {
			return false, nil
		}
		key = NumberValue(n).Text()
	}
	_, found := members[key]
	return found, nil
}
