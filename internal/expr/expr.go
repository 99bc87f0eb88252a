// Package expr evaluates small integer expressions over named variables.
//
// The grammar covers what tuning restrictions and grid divisor expressions
// need and nothing more: decimal integer literals, identifiers, unary - and !,
// the arithmetic operators + - * / %, the comparisons == != < > <= >=, and the
// short-circuit logical operators && and ||, with parentheses for grouping.
//
// All values are int64. Comparison and logical operators yield 1 or 0, and any
// nonzero value is truthy, matching C. Division truncates toward zero; dividing
// or taking the remainder by zero is an evaluation error, as is referencing an
// identifier that has no binding.
package expr

import (
	"fmt"
	"strconv"
)

// Expr is a compiled expression ready for repeated evaluation.
type Expr struct {
	src  string
	root node
}

// Compile parses src and returns an expression that can be evaluated against
// different variable bindings without reparsing.
func Compile(src string) (*Expr, error) {
	toks, err := scan(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at offset %d", tok.text, tok.pos)
	}
	return &Expr{src: src, root: root}, nil
}

// Eval compiles and evaluates src in one step.
func Eval(src string, vars map[string]int64) (int64, error) {
	e, err := Compile(src)
	if err != nil {
		return 0, err
	}
	return e.Eval(vars)
}

// Eval evaluates the expression against vars.
func (e *Expr) Eval(vars map[string]int64) (int64, error) {
	return e.root.eval(vars)
}

func (e *Expr) String() string { return e.src }

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokIdent
	tokLParen
	tokRParen
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokEq
	tokNeq
	tokLt
	tokGt
	tokLeq
	tokGeq
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func scan(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			toks = append(toks, token{tokInt, src[start:i], start})
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			start := i
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		default:
			kind, width, err := scanOp(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind, src[i : i+width], i})
			i += width
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func scanOp(src string, i int) (tokenKind, int, error) {
	two := ""
	if i+1 < len(src) {
		two = src[i : i+2]
	}
	switch two {
	case "==":
		return tokEq, 2, nil
	case "!=":
		return tokNeq, 2, nil
	case "<=":
		return tokLeq, 2, nil
	case ">=":
		return tokGeq, 2, nil
	case "&&":
		return tokAnd, 2, nil
	case "||":
		return tokOr, 2, nil
	}
	switch src[i] {
	case '(':
		return tokLParen, 1, nil
	case ')':
		return tokRParen, 1, nil
	case '+':
		return tokPlus, 1, nil
	case '-':
		return tokMinus, 1, nil
	case '*':
		return tokStar, 1, nil
	case '/':
		return tokSlash, 1, nil
	case '%':
		return tokPercent, 1, nil
	case '<':
		return tokLt, 1, nil
	case '>':
		return tokGt, 1, nil
	case '!':
		return tokNot, 1, nil
	}
	return tokEOF, 0, fmt.Errorf("unexpected character %q at offset %d", src[i], i)
}

type node interface {
	eval(vars map[string]int64) (int64, error)
}

type intLit struct {
	v int64
}

func (n intLit) eval(map[string]int64) (int64, error) { return n.v, nil }

type varRef struct {
	name string
}

func (n varRef) eval(vars map[string]int64) (int64, error) {
	v, ok := vars[n.name]
	if !ok {
		return 0, fmt.Errorf("unknown identifier %q", n.name)
	}
	return v, nil
}

type unaryOp struct {
	op tokenKind
	x  node
}

func (n unaryOp) eval(vars map[string]int64) (int64, error) {
	v, err := n.x.eval(vars)
	if err != nil {
		return 0, err
	}
	if n.op == tokNot {
		if v == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return -v, nil
}

type binaryOp struct {
	op   tokenKind
	x, y node
}

func (n binaryOp) eval(vars map[string]int64) (int64, error) {
	x, err := n.x.eval(vars)
	if err != nil {
		return 0, err
	}
	// && and || short-circuit before the right side is touched.
	switch n.op {
	case tokAnd:
		if x == 0 {
			return 0, nil
		}
		return truth(n.y.eval(vars))
	case tokOr:
		if x != 0 {
			return 1, nil
		}
		return truth(n.y.eval(vars))
	}
	y, err := n.y.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case tokPlus:
		return x + y, nil
	case tokMinus:
		return x - y, nil
	case tokStar:
		return x * y, nil
	case tokSlash:
		if y == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return x / y, nil
	case tokPercent:
		if y == 0 {
			return 0, fmt.Errorf("modulo by zero")
		}
		return x % y, nil
	case tokEq:
		return b2i(x == y), nil
	case tokNeq:
		return b2i(x != y), nil
	case tokLt:
		return b2i(x < y), nil
	case tokGt:
		return b2i(x > y), nil
	case tokLeq:
		return b2i(x <= y), nil
	case tokGeq:
		return b2i(x >= y), nil
	}
	return 0, fmt.Errorf("invalid operator")
}

func truth(v int64, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return b2i(v != 0), nil
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) parseOr() (node, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		x = binaryOp{tokOr, x, y}
	}
	return x, nil
}

func (p *parser) parseAnd() (node, error) {
	x, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		y, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		x = binaryOp{tokAnd, x, y}
	}
	return x, nil
}

func (p *parser) parseCmp() (node, error) {
	x, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		switch op {
		case tokEq, tokNeq, tokLt, tokGt, tokLeq, tokGeq:
			p.next()
			y, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			x = binaryOp{op, x, y}
		default:
			return x, nil
		}
	}
}

func (p *parser) parseAdd() (node, error) {
	x, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokPlus && op != tokMinus {
			return x, nil
		}
		p.next()
		y, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		x = binaryOp{op, x, y}
	}
}

func (p *parser) parseMul() (node, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		if op != tokStar && op != tokSlash && op != tokPercent {
			return x, nil
		}
		p.next()
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = binaryOp{op, x, y}
	}
}

func (p *parser) parseUnary() (node, error) {
	switch p.peek().kind {
	case tokMinus:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryOp{tokMinus, x}, nil
	case tokNot:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryOp{tokNot, x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokInt:
		v, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q at offset %d", tok.text, tok.pos)
		}
		return intLit{v}, nil
	case tokIdent:
		return varRef{tok.text}, nil
	case tokLParen:
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis at offset %d", closing.pos)
		}
		return x, nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q at offset %d", tok.text, tok.pos)
}
