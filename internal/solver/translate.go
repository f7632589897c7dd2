// Package solver translates assertion expressions into Z3 formulas and
// enumerates models of their negation.
package solver

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/aclements/go-z3/z3"

	"github.com/unbound-force/assay/internal/expr"
)

// ErrUnhandledConstruct is returned when an expression contains a node
// kind or operator that has no formula counterpart.
var ErrUnhandledConstruct = errors.New("unhandled construct")

// ConstructError describes the node that could not be translated.
type ConstructError struct {
	Kind expr.Kind
	Op   string
	Text string
}

func (e *ConstructError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s operator %q in %q", ErrUnhandledConstruct, e.Kind, e.Op, e.Text)
	}
	return fmt.Sprintf("%s: %s %q", ErrUnhandledConstruct, e.Kind, e.Text)
}

func (e *ConstructError) Unwrap() error { return ErrUnhandledConstruct }

func unhandled(n *expr.Node) error {
	return &ConstructError{Kind: n.Kind(), Op: n.Op(), Text: n.Text()}
}

// Translator turns expression trees into Z3 values. Identifiers, field
// accesses and calls become integer constants named by their source
// text, memoized for the lifetime of the translator.
type Translator struct {
	ctx   *z3.Context
	vars  map[string]z3.Int
	order []string
}

// NewTranslator returns a translator bound to ctx.
func NewTranslator(ctx *z3.Context) *Translator {
	return &Translator{ctx: ctx, vars: make(map[string]z3.Int)}
}

// Vars returns the tracked variables in creation order.
func (t *Translator) Vars() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Var returns the tracked variable for name.
func (t *Translator) Var(name string) (z3.Int, bool) {
	v, ok := t.vars[name]
	return v, ok
}

func (t *Translator) intVar(name string) z3.Int {
	if v, ok := t.vars[name]; ok {
		return v
	}
	v := t.ctx.IntConst(name)
	t.vars[name] = v
	t.order = append(t.order, name)
	return v
}

// Condition translates n and requires a boolean result.
func (t *Translator) Condition(n *expr.Node) (z3.Bool, error) {
	var b z3.Bool
	v, err := t.Translate(n)
	if err != nil {
		return b, err
	}
	b, ok := v.(z3.Bool)
	if !ok {
		return b, unhandled(n)
	}
	return b, nil
}

// Translate converts n into a Z3 value.
func (t *Translator) Translate(n *expr.Node) (z3.Value, error) {
	switch n.Kind() {
	case expr.IntLiteral:
		return t.intLiteral(n)
	case expr.DecimalLiteral:
		body := strings.TrimRight(strings.ReplaceAll(n.Text(), "_", ""), "fFdD")
		r, ok := new(big.Rat).SetString(body)
		if !ok {
			return nil, unhandled(n)
		}
		return t.ctx.FromBigRat(r), nil
	case expr.CharLiteral:
		c, _, _, err := strconv.UnquoteChar(strings.Trim(n.Text(), "'"), '\'')
		if err != nil {
			return nil, unhandled(n)
		}
		return t.ctx.FromInt(int64(c), t.ctx.IntSort()).(z3.Int), nil
	case expr.True:
		return t.ctx.FromBool(true), nil
	case expr.False:
		return t.ctx.FromBool(false), nil
	case expr.Identifier, expr.FieldAccess, expr.Call:
		return t.intVar(n.Text()), nil
	case expr.Paren:
		return t.Translate(n.Child(0))
	case expr.Unary:
		return t.unary(n)
	case expr.Binary:
		return t.binary(n)
	}
	return nil, unhandled(n)
}

func (t *Translator) intLiteral(n *expr.Node) (z3.Value, error) {
	body := strings.TrimRight(strings.ReplaceAll(n.Text(), "_", ""), "lL")
	v, err := strconv.ParseInt(body, 0, 64)
	if err != nil {
		return nil, unhandled(n)
	}
	return t.ctx.FromInt(v, t.ctx.IntSort()).(z3.Int), nil
}

func (t *Translator) unary(n *expr.Node) (z3.Value, error) {
	operand, err := t.Translate(n.Child(0))
	if err != nil {
		return nil, err
	}
	switch op := n.Op(); {
	case op == "!":
		if b, ok := operand.(z3.Bool); ok {
			return b.Not(), nil
		}
	case op == "-":
		switch v := operand.(type) {
		case z3.Int:
			return v.Neg(), nil
		case z3.Real:
			return v.Neg(), nil
		}
	case op == "+":
		switch operand.(type) {
		case z3.Int, z3.Real:
			return operand, nil
		}
	}
	return nil, unhandled(n)
}

func (t *Translator) binary(n *expr.Node) (z3.Value, error) {
	l, err := t.Translate(n.Child(0))
	if err != nil {
		return nil, err
	}
	r, err := t.Translate(n.Child(1))
	if err != nil {
		return nil, err
	}
	op := n.Op()

	switch op {
	case "&&", "||":
		lb, lok := l.(z3.Bool)
		rb, rok := r.(z3.Bool)
		if !lok || !rok {
			return nil, unhandled(n)
		}
		if op == "&&" {
			return lb.And(rb), nil
		}
		return lb.Or(rb), nil
	case "==", "!=":
		if lb, ok := l.(z3.Bool); ok {
			rb, ok := r.(z3.Bool)
			if !ok {
				return nil, unhandled(n)
			}
			if op == "==" {
				return lb.Eq(rb), nil
			}
			return lb.Eq(rb).Not(), nil
		}
	}

	switch lv := l.(type) {
	case z3.Int:
		if rv, ok := r.(z3.Int); ok {
			if v, ok := intOp(op, lv, rv); ok {
				return v, nil
			}
			return nil, unhandled(n)
		}
	}
	lr, lok := toReal(l)
	rr, rok := toReal(r)
	if !lok || !rok {
		return nil, unhandled(n)
	}
	if v, ok := realOp(op, lr, rr); ok {
		return v, nil
	}
	return nil, unhandled(n)
}

// toReal widens integers so mixed arithmetic shares one sort.
func toReal(v z3.Value) (z3.Real, bool) {
	switch v := v.(type) {
	case z3.Int:
		return v.ToReal(), true
	case z3.Real:
		return v, true
	}
	var zero z3.Real
	return zero, false
}

func intOp(op string, l, r z3.Int) (z3.Value, bool) {
	switch op {
	case "+":
		return l.Add(r), true
	case "-":
		return l.Sub(r), true
	case "*":
		return l.Mul(r), true
	case "/":
		return l.Div(r), true
	case "%":
		return l.Mod(r), true
	case ">":
		return l.GT(r), true
	case ">=":
		return l.GE(r), true
	case "<":
		return l.LT(r), true
	case "<=":
		return l.LE(r), true
	case "==":
		return l.Eq(r), true
	case "!=":
		return l.Eq(r).Not(), true
	}
	return nil, false
}

func realOp(op string, l, r z3.Real) (z3.Value, bool) {
	switch op {
	case "+":
		return l.Add(r), true
	case "-":
		return l.Sub(r), true
	case "*":
		return l.Mul(r), true
	case "/":
		return l.Div(r), true
	case ">":
		return l.GT(r), true
	case ">=":
		return l.GE(r), true
	case "<":
		return l.LT(r), true
	case "<=":
		return l.LE(r), true
	case "==":
		return l.Eq(r), true
	case "!=":
		return l.Eq(r).Not(), true
	}
	return nil, false
}
