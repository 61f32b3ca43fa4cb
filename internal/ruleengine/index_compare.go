package ruleengine

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// compareIndex implements ==, !=, <, <=, > and >=.
//
// Without a declared kind the operands decide the semantics: numbers compare
// numerically (numeric strings are coerced), strings that both parse as
// semantic versions compare as versions and other strings compare
// lexically. Booleans only support equality. Values that cannot be compared
// make the comparison false.
type compareIndex struct {
	criterion string
	operator  string
	kind      CriterionKind
}

func (i *compareIndex) Criterion() string { return i.criterion }
func (i *compareIndex) Operator() string  { return i.operator }

func (i *compareIndex) Compile(operand Value) (any, error) {
	switch i.kind {
	case CriterionNumber:
		n, ok := asNumber(operand)
		if !ok {
			return nil, &SchemaError{Msg: fmt.Sprintf("criterion %q is a number, operand %s is not", i.criterion, operand)}
		}
		return NumberValue(n), nil
	case CriterionVersion:
		v, ok := asVersion(operand)
		if !ok {
			return nil, &SchemaError{Msg: fmt.Sprintf("criterion %q is a version, operand %s is not a semantic version", i.criterion, operand)}
		}
		return StringValue(v), nil
	case CriterionBool:
		if operand.Kind() != KindBool {
			return nil, &SchemaError{Msg: fmt.Sprintf("criterion %q is a bool, operand %s is not", i.criterion, operand)}
		}
	case CriterionString:
		if operand.Kind() != KindString {
			return nil, &SchemaError{Msg: fmt.Sprintf("criterion %q is a string, operand %s is not", i.criterion, operand)}
		}
	case CriterionID:
		if operand.Kind() == KindBool {
			return nil, &SchemaError{Msg: fmt.Sprintf("criterion %q is an id, operand %s is a bool", i.criterion, operand)}
		}
	}
	if (i.kind == "" || i.kind == CriterionNumber) && operand.Kind() == KindBool && i.operator != OpEqual && i.operator != OpNotEqual {
		return nil, &SchemaError{Msg: fmt.Sprintf("operator %q cannot order bool operand %s", i.operator, operand)}
	}
	return operand, nil
}

func (i *compareIndex) Evaluate(operand any, ctx Context) (bool, error) {
	want, ok := operand.(Value)
	if !ok {
		return false, fmt.Errorf("invalid operand type: expected Value, got %T", operand)
	}
	got, err := lookup(ctx, i.criterion)
	if err != nil {
		return false, err
	}

	switch i.operator {
	case OpEqual:
		return i.equal(got, want), nil
	case OpNotEqual:
		return !i.equal(got, want), nil
	}

	c, ok := i.order(got, want)
	if !ok {
		return false, nil
	}
	switch i.operator {
	case OpLess:
		return c < 0, nil
	case OpLessOrEqual:
		return c <= 0, nil
	case OpGreater:
		return c > 0, nil
	case OpGreaterOrEqual:
		return c >= 0, nil
	}
	return false, fmt.Errorf("compare index cannot evaluate operator %q", i.operator)
}

func (i *compareIndex) equal(got, want Value) bool {
	switch i.kind {
	case CriterionVersion:
		g, ok := asVersion(got)
		return ok && semver.Compare(g, want.Str()) == 0
	case CriterionNumber:
		g, ok := asNumber(got)
		return ok && g == want.Num()
	case CriterionID:
		return got.Text() == want.Text()
	}

	if got.Kind() == KindString && want.Kind() == KindString {
		// Agree with order: version-like strings compare as versions.
		if g, ok := asVersion(got); ok {
			if w, ok := asVersion(want); ok {
				return semver.Compare(g, w) == 0
			}
		}
		return got == want
	}
	if got.Kind() == want.Kind() {
		return got == want
	}
	if got.Kind() == KindBool || want.Kind() == KindBool {
		return false
	}
	g, gok := asNumber(got)
	w, wok := asNumber(want)
	return gok && wok && g == w
}

// order returns the sign of got-want and whether the values are ordered.
func (i *compareIndex) order(got, want Value) (int, bool) {
	switch i.kind {
	case CriterionVersion:
		g, ok := asVersion(got)
		if !ok {
			return 0, false
		}
		return semver.Compare(g, want.Str()), true
	case CriterionNumber:
		g, ok := asNumber(got)
		if !ok {
			return 0, false
		}
		return compareFloat(g, want.Num()), true
	}

	if got.Kind() == KindBool || want.Kind() == KindBool {
		return 0, false
	}
	if got.Kind() == KindNumber || want.Kind() == KindNumber {
		g, gok := asNumber(got)
		w, wok := asNumber(want)
		if !gok || !wok {
			return 0, false
		}
		return compareFloat(g, w), true
	}
	if g, ok := asVersion(got); ok {
		if w, ok := asVersion(want); ok {
			return semver.Compare(g, w), true
		}
	}
	return strings.Compare(got.Str(), want.Str()), true
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asNumber(v Value) (float64, bool) {
	switch v.Kind() {
	case KindNumber:
		return v.Num(), true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str()), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asVersion returns the canonical "vX.Y.Z" form of a version-like value.
// A leading "v" is optional in conditions and contexts.
func asVersion(v Value) (string, bool) {
	var s string
	switch v.Kind() {
	case KindString:
		s = strings.TrimSpace(v.Str())
	case KindNumber:
		s = v.Text()
	default:
		return "", false
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return "", false
	}
	return semver.Canonical(s), true
}
