// Package condition parses and evaluates the boolean trigger expressions used by events
// and combos.
//
// Grammar:
//
//	or      := and ("||" and)*
//	and     := unary ("&&" unary)*
//	unary   := "!" unary | compare
//	compare := primary (("<"|"<="|">"|">="|"=="|"!=") primary)?
//	primary := number | "true" | "false" | ident | "-" primary | "(" or ")"
//
// Identifiers are numeric. Expressions are type-checked at parse time; the top level
// must be boolean.
package condition

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrSyntax  = errors.New("condition syntax")
	ErrType    = errors.New("condition type")
	ErrUnbound = errors.New("condition unbound identifier")
)

// Env resolves identifiers at evaluation time.
type Env interface {
	Lookup(name string) (float64, bool)
}

// MapEnv is an Env backed by a map.
type MapEnv map[string]float64

func (m MapEnv) Lookup(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

type valueKind uint8

const (
	kindNum valueKind = iota + 1
	kindBool
)

type op uint8

const (
	opNum op = iota + 1
	opBool
	opIdent
	opNeg
	opNot
	opAnd
	opOr
	opLT
	opLE
	opGT
	opGE
	opEQ
	opNE
)

type node struct {
	op    op
	kind  valueKind
	num   float64
	b     bool
	name  string
	left  *node
	right *node
}

// Expr is a parsed, type-checked condition.
type Expr struct {
	src  string
	root *node
}

func (e *Expr) String() string { return e.src }

// Parse compiles src. An empty (or all-space) source yields nil, nil: no condition.
func Parse(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.peek().text, p.peek().pos)
	}
	if root.kind != kindBool {
		return nil, fmt.Errorf("%w: expression is numeric, want boolean", ErrType)
	}
	return &Expr{src: src, root: root}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Eval evaluates the expression. A nil expression is true.
func (e *Expr) Eval(env Env) (bool, error) {
	if e == nil || e.root == nil {
		return true, nil
	}
	return evalBool(e.root, env)
}

// Identifiers lists the distinct identifiers referenced, sorted.
func (e *Expr) Identifiers() []string {
	if e == nil || e.root == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		if n.op == opIdent {
			seen[n.name] = struct{}{}
		}
		walk(n.left)
		walk(n.right)
	}
	walk(e.root)
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func evalBool(n *node, env Env) (bool, error) {
	switch n.op {
	case opBool:
		return n.b, nil
	case opNot:
		v, err := evalBool(n.left, env)
		return !v, err
	case opAnd:
		l, err := evalBool(n.left, env)
		if err != nil || !l {
			return false, err
		}
		return evalBool(n.right, env)
	case opOr:
		l, err := evalBool(n.left, env)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return evalBool(n.right, env)
	case opLT, opLE, opGT, opGE, opEQ, opNE:
		l, err := evalNum(n.left, env)
		if err != nil {
			return false, err
		}
		r, err := evalNum(n.right, env)
		if err != nil {
			return false, err
		}
		switch n.op {
		case opLT:
			return l < r, nil
		case opLE:
			return l <= r, nil
		case opGT:
			return l > r, nil
		case opGE:
			return l >= r, nil
		case opEQ:
			return l == r, nil
		default:
			return l != r, nil
		}
	}
	return false, fmt.Errorf("%w: node is not boolean", ErrType)
}

func evalNum(n *node, env Env) (float64, error) {
	switch n.op {
	case opNum:
		return n.num, nil
	case opNeg:
		v, err := evalNum(n.left, env)
		return -v, err
	case opIdent:
		if env == nil {
			return 0, fmt.Errorf("%w: %s", ErrUnbound, n.name)
		}
		v, ok := env.Lookup(n.name)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnbound, n.name)
		}
		return v, nil
	}
	return 0, fmt.Errorf("%w: node is not numeric", ErrType)
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (*node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		t := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if left.kind != kindBool || right.kind != kindBool {
			return nil, fmt.Errorf("%w: '||' at %d needs boolean operands", ErrType, t.pos)
		}
		left = &node{op: opOr, kind: kindBool, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (*node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		t := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if left.kind != kindBool || right.kind != kindBool {
			return nil, fmt.Errorf("%w: '&&' at %d needs boolean operands", ErrType, t.pos)
		}
		left = &node{op: opAnd, kind: kindBool, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (*node, error) {
	if p.peek().kind == tokNot {
		t := p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if inner.kind != kindBool {
			return nil, fmt.Errorf("%w: '!' at %d needs a boolean operand", ErrType, t.pos)
		}
		return &node{op: opNot, kind: kindBool, left: inner}, nil
	}
	return p.parseCompare()
}

var compareOps = map[tokKind]op{
	tokLT: opLT, tokLE: opLE, tokGT: opGT, tokGE: opGE, tokEQ: opEQ, tokNE: opNE,
}

func (p *parser) parseCompare() (*node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	o, ok := compareOps[p.peek().kind]
	if !ok {
		return left, nil
	}
	t := p.next()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if left.kind != kindNum || right.kind != kindNum {
		return nil, fmt.Errorf("%w: %q at %d compares non-numbers", ErrType, t.text, t.pos)
	}
	return &node{op: o, kind: kindBool, left: left, right: right}, nil
}

func (p *parser) parsePrimary() (*node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q at %d", ErrSyntax, t.text, t.pos)
		}
		return &node{op: opNum, kind: kindNum, num: v}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &node{op: opBool, kind: kindBool, b: true}, nil
		case "false":
			return &node{op: opBool, kind: kindBool, b: false}, nil
		}
		return &node{op: opIdent, kind: kindNum, name: t.text}, nil
	case tokMinus:
		inner, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if inner.kind != kindNum {
			return nil, fmt.Errorf("%w: '-' at %d needs a number", ErrType, t.pos)
		}
		return &node{op: opNeg, kind: kindNum, left: inner}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ')' at %d", ErrSyntax, c.pos)
		}
		return inner, nil
	case tokEOF:
		return nil, fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	}
	return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
}
