package ruleengine

import (
	"strconv"
)

// Operator names understood by the parser.
const (
	OpEqual            = "=="
	OpNotEqual         = "!="
	OpLess             = "<"
	OpLessOrEqual      = "<="
	OpGreater          = ">"
	OpGreaterOrEqual   = ">="
	OpOneOf            = "one_of"
	OpRandomlySelected = "randomly_selected"
)

// operators is the closed set the parser accepts. A new named operator needs
// an entry here and an index constructor in newIndex.
var operators = map[string]struct{}{
	OpEqual:            {},
	OpNotEqual:         {},
	OpLess:             {},
	OpLessOrEqual:      {},
	OpGreater:          {},
	OpGreaterOrEqual:   {},
	OpOneOf:            {},
	OpRandomlySelected: {},
}

// Parse turns an infix condition into an expression tree.
//
//	Or         := And (OR And)*
//	And        := Unary (AND Unary)*
//	Unary      := '(' Or ')' | Comparison
//	Comparison := Identifier Operator Literal
//
// Parse has no shared state and is safe for concurrent use.
func Parse(text string) (Expr, error) {
	p := &parser{lex: lexer{src: text}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind == tokEOF {
		return nil, &SyntaxError{Pos: 0, Msg: "empty condition"}
	}

	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		if p.tok.kind == tokRParen {
			return nil, p.errorf("unmatched closing parenthesis")
		}
		return nil, p.errorf("unexpected input after complete expression")
	}
	return e, nil
}

type parser struct {
	lex lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errorf(msg string) *SyntaxError {
	return &SyntaxError{Pos: p.tok.pos, Token: p.tok.text, Msg: msg}
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.tok.kind != tokLParen {
		return p.parseComparison()
	}

	open := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokRParen {
		return nil, &SyntaxError{Pos: open.pos, Token: open.text, Msg: "unmatched opening parenthesis"}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *parser) parseComparison() (Expr, error) {
	switch p.tok.kind {
	case tokIdent:
	case tokEOF:
		return nil, p.errorf("expected attribute name, got end of input")
	case tokRParen:
		return nil, p.errorf("unmatched closing parenthesis")
	default:
		return nil, p.errorf("expected attribute name")
	}
	criterion := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.tok.kind != tokOperator && p.tok.kind != tokIdent {
		if p.tok.kind == tokEOF {
			return nil, p.errorf("expected operator after " + strconv.Quote(criterion) + ", got end of input")
		}
		return nil, p.errorf("expected operator")
	}
	if _, ok := operators[p.tok.text]; !ok {
		return nil, p.errorf("unknown operator")
	}
	op := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	operand, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &Comparison{Criterion: criterion, Operator: op, Operand: operand}, nil
}

func (p *parser) parseLiteral() (Value, error) {
	var v Value
	switch p.tok.kind {
	case tokString:
		v = StringValue(p.tok.text)
	case tokNumber:
		f, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return Value{}, p.errorf("malformed number")
		}
		v = NumberValue(f)
	case tokIdent:
		switch p.tok.text {
		case "true":
			v = BoolValue(true)
		case "false":
			v = BoolValue(false)
		default:
			return Value{}, p.errorf("expected literal operand, got identifier")
		}
	case tokEOF:
		return Value{}, p.errorf("missing operand")
	default:
		return Value{}, p.errorf("missing operand")
	}
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	return v, nil
}
