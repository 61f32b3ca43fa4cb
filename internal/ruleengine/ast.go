package ruleengine

import "strings"

// Expr is a parsed condition. The concrete types are *Comparison, *And and *Or.
type Expr interface {
	String() string
	expr()
}

// Comparison tests one context attribute against a literal operand.
type Comparison struct {
	Criterion string
	Operator  string
	Operand   Value
}

// And is true when both operands are true.
type And struct {
	Left, Right Expr
}

// Or is true when either operand is true.
type Or struct {
	Left, Right Expr
}

func (*Comparison) expr() {}
func (*And) expr()        {}
func (*Or) expr()         {}

func (c *Comparison) String() string {
	return c.Criterion + " " + c.Operator + " " + c.Operand.String()
}

func (a *And) String() string { return binaryString("AND", a.Left, a.Right) }
func (o *Or) String() string  { return binaryString("OR", o.Left, o.Right) }

func binaryString(op string, l, r Expr) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(l.String())
	b.WriteByte(' ')
	b.WriteString(op)
	b.WriteByte(' ')
	b.WriteString(r.String())
	b.WriteByte(')')
	return b.String()
}
