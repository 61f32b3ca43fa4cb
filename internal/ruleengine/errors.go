package ruleengine

import "fmt"

// SyntaxError reports a malformed condition string.
type SyntaxError struct {
	// Pos is the byte offset of the offending token in the condition.
	Pos int
	// Token is the offending token text ("" at end of input).
	Token string
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("syntax error at offset %d near %q: %s", e.Pos, e.Token, e.Msg)
}

// SchemaError reports a definition that violates a structural invariant:
// feature coverage, feature ownership, criteria schema or operand typing.
type SchemaError struct {
	// Group and Rule locate the violation; either may be empty.
	Group string
	Rule  string
	Msg   string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Group != "" && e.Rule != "":
		return fmt.Sprintf("schema error in group %q rule %q: %s", e.Group, e.Rule, e.Msg)
	case e.Group != "":
		return fmt.Sprintf("schema error in group %q: %s", e.Group, e.Msg)
	default:
		return "schema error: " + e.Msg
	}
}

// MissingAttributeError is returned by an Index when the context lacks the
// criterion it tests. The evaluator turns it into a false comparison.
type MissingAttributeError struct {
	Criterion string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("context has no attribute %q", e.Criterion)
}

// RuleError wraps a parse or schema failure with the rule it came from.
// errors.As still reaches the underlying *SyntaxError or *SchemaError.
type RuleError struct {
	Group string
	Rule  string
	Err   error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("group %q rule %q: %v", e.Group, e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }
