package symexec

import (
	"fmt"

	"github.com/aclements/go-z3/z3"

	"github.com/unbound-force/assay/internal/bytecode"
)

// Step returns the successors of executing the instruction at pc in
// st. st is not modified. A conditional jump yields two successors
// with complementary constraints; return and throw yield none.
func (e *Explorer) Step(pc PC, st *State) ([]Continuation, error) {
	if pc.Offset < 0 || pc.Offset >= len(e.method.Code) {
		return nil, fmt.Errorf("%w: pc %s outside code of length %d", ErrStepFailure, pc, len(e.method.Code))
	}
	op := e.method.Code[pc.Offset]
	e.logger.Debug("step", "pc", pc, "op", op, "stack", st)

	next := st.Clone()
	advance := func(delta ...z3.Bool) ([]Continuation, error) {
		return []Continuation{{PC: pc.Next(), State: next, Delta: delta}}, nil
	}

	switch op := op.(type) {
	case bytecode.Push:
		next.push(Concrete{Lit: op.Value})
		return advance()

	case bytecode.Load:
		v, ok := st.Locals[op.Index]
		if !ok {
			return nil, fmt.Errorf("%w: local %d not initialized", ErrStepFailure, op.Index)
		}
		next.push(v)
		return advance()

	case bytecode.Store:
		v, err := next.pop()
		if err != nil {
			return nil, err
		}
		next.Locals[op.Index] = v
		return advance()

	case bytecode.Dup:
		if len(next.Stack) < op.Words {
			return nil, fmt.Errorf("%w: dup of %d words on stack of %d", ErrStepFailure, op.Words, len(next.Stack))
		}
		next.Stack = append(next.Stack, next.Stack[len(next.Stack)-op.Words:]...)
		return advance()

	case bytecode.Incr:
		v, ok := next.Locals[op.Index]
		if !ok {
			return nil, fmt.Errorf("%w: local %d not initialized", ErrStepFailure, op.Index)
		}
		next.Locals[op.Index] = Symbolic{Expr: e.formula(v).Add(e.lit(op.Amount))}
		return advance()

	case bytecode.Cast:
		v, err := next.pop()
		if err != nil {
			return nil, err
		}
		next.push(v)
		return advance()

	case bytecode.Goto:
		return []Continuation{{PC: PC{Method: pc.Method, Offset: op.Target}, State: next}}, nil

	case bytecode.Negate:
		v, err := next.pop()
		if err != nil {
			return nil, err
		}
		next.push(Symbolic{Expr: e.formula(v).Neg()})
		return advance()

	case bytecode.Binary:
		return e.binary(op, next, advance)

	case bytecode.Ifz:
		v, err := next.pop()
		if err != nil {
			return nil, err
		}
		return e.branch(pc, next, op.Cond, op.Target, e.formula(v), e.lit(0))

	case bytecode.If:
		v2, err := next.pop()
		if err != nil {
			return nil, err
		}
		v1, err := next.pop()
		if err != nil {
			return nil, err
		}
		return e.branch(pc, next, op.Cond, op.Target, e.formula(v1), e.formula(v2))

	case bytecode.Return, bytecode.Throw:
		return nil, nil

	case bytecode.Get:
		if !op.Static {
			if _, err := next.pop(); err != nil {
				return nil, err
			}
		}
		next.push(e.fresh("field_" + op.Field.Name))
		return advance()

	case bytecode.Put:
		n := 2
		if op.Static {
			n = 1
		}
		if err := next.popN(n); err != nil {
			return nil, err
		}
		return advance()

	case bytecode.NewArray:
		if err := next.popN(op.Dim); err != nil {
			return nil, err
		}
		ref := e.fresh(fmt.Sprintf("array_ref_%d", pc.Offset))
		next.Heap[pc.Offset] = ref
		next.push(ref)
		return advance()

	case bytecode.ArrayStore:
		if err := next.popN(3); err != nil {
			return nil, err
		}
		return advance()

	case bytecode.ArrayLoad:
		if err := next.popN(2); err != nil {
			return nil, err
		}
		next.push(e.fresh(fmt.Sprintf("array_elem_%d", pc.Offset)))
		return advance()

	case bytecode.ArrayLength:
		if err := next.popN(1); err != nil {
			return nil, err
		}
		next.push(e.fresh(fmt.Sprintf("array_length_%d", pc.Offset)))
		return advance()

	case bytecode.New:
		ref := e.fresh(fmt.Sprintf("obj_ref_%s_%d", op.Class, pc.Offset))
		next.Heap[pc.Offset] = ref
		next.push(ref)
		return advance()

	case bytecode.Invoke:
		n := len(op.Args)
		if !op.Static() {
			n++
		}
		if err := next.popN(n); err != nil {
			return nil, err
		}
		if !op.Void() {
			next.push(e.fresh("ret_" + op.Name))
		}
		return advance()
	}

	e.logger.Warn("skipping instruction", "pc", pc, "op", op, "err", ErrUnmodeledOpcode)
	return []Continuation{{PC: pc.Next(), State: st.Clone()}}, nil
}

func (e *Explorer) binary(op bytecode.Binary, next *State, cont func(...z3.Bool) ([]Continuation, error)) ([]Continuation, error) {
	v2, err := next.pop()
	if err != nil {
		return nil, err
	}
	v1, err := next.pop()
	if err != nil {
		return nil, err
	}
	if !integral(op.Type) {
		next.push(e.fresh("binary_" + op.Type))
		return cont()
	}
	l, r := e.formula(v1), e.formula(v2)
	switch op.Operator {
	case bytecode.Add:
		next.push(Symbolic{Expr: l.Add(r)})
	case bytecode.Sub:
		next.push(Symbolic{Expr: l.Sub(r)})
	case bytecode.Mul:
		next.push(Symbolic{Expr: l.Mul(r)})
	case bytecode.Div:
		next.push(Symbolic{Expr: l.Div(r)})
		return cont(r.Eq(e.lit(0)).Not())
	case bytecode.Rem:
		next.push(Symbolic{Expr: l.Mod(r)})
		return cont(r.Eq(e.lit(0)).Not())
	default:
		return nil, fmt.Errorf("%w: binary operator %q", ErrStepFailure, op.Operator)
	}
	return cont()
}

// branch yields the jump target under cond and the fallthrough under
// its negation.
func (e *Explorer) branch(pc PC, next *State, cond bytecode.Cond, target int, l, r z3.Int) ([]Continuation, error) {
	taken, err := compare(cond, l, r)
	if err != nil {
		return nil, err
	}
	notTaken, err := compare(cond.Negate(), l, r)
	if err != nil {
		return nil, err
	}
	return []Continuation{
		{PC: PC{Method: pc.Method, Offset: target}, State: next, Delta: []z3.Bool{taken}},
		{PC: pc.Next(), State: next.Clone(), Delta: []z3.Bool{notTaken}},
	}, nil
}

// compare builds l cond r. Reference conditions compare against null,
// which is zero.
func compare(cond bytecode.Cond, l, r z3.Int) (z3.Bool, error) {
	switch cond {
	case bytecode.Eq, bytecode.Is:
		return l.Eq(r), nil
	case bytecode.Ne, bytecode.IsNot:
		return l.Eq(r).Not(), nil
	case bytecode.Lt:
		return l.LT(r), nil
	case bytecode.Le:
		return l.LE(r), nil
	case bytecode.Gt:
		return l.GT(r), nil
	case bytecode.Ge:
		return l.GE(r), nil
	}
	var b z3.Bool
	return b, fmt.Errorf("%w: condition %q", ErrStepFailure, cond)
}

func integral(typ string) bool {
	switch typ {
	case "int", "long", "short", "byte", "char", "boolean", "":
		return true
	}
	return false
}
