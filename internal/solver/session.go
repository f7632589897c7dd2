package solver

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/aclements/go-z3/z3"

	"github.com/unbound-force/assay/internal/expr"
)

// Status is the outcome of a satisfiability check.
type Status string

// Check outcomes.
const (
	Sat     Status = "sat"
	Unsat   Status = "unsat"
	Unknown Status = "unknown"
)

// Result is a snapshot of one Solve call.
type Result struct {
	Status Status

	// Vars lists the tracked variable names in creation order.
	Vars []string

	// Model is nil unless Status is Sat.
	Model *z3.Model

	// Solver is the session's underlying solver handle.
	Solver *z3.Solver

	tr *Translator
}

// Session owns one Z3 context and the clauses accumulated for a list
// of assertion expressions. A session is not safe for concurrent use.
type Session struct {
	ctx    *z3.Context
	solver *z3.Solver
	tr     *Translator
	exprs  []*expr.Node

	// clauses holds the negated assertions and blocking clauses.
	clauses []z3.Bool
	// bias holds the soft "at least one" constraints of the latest
	// blocking round.
	bias     []z3.Bool
	asserted bool

	// checkFn runs one satisfiability check; checkWith unless replaced
	// in tests.
	checkFn func(bias []z3.Bool) (bool, error)
}

// NewSession returns a session over exprs with a fresh Z3 context.
func NewSession(exprs []*expr.Node) *Session {
	ctx := z3.NewContext(nil)
	s := &Session{
		ctx:   ctx,
		tr:    NewTranslator(ctx),
		exprs: exprs,
	}
	s.checkFn = s.checkWith
	return s
}

// Solve asserts the negation of every expression and returns the
// attempts-th distinct model. Each model found before the requested
// one is blocked by requiring at least one tracked variable to take a
// different value. After even rounds every integer variable is also
// biased toward values of at least one; the bias is dropped again when
// it leaves nothing satisfiable. Once the models run out, Z3 gives up,
// or there are no variables to block, the last model found is returned.
// Unknown is reported only when no model was found.
func (s *Session) Solve(attempts int) (*Result, error) {
	if attempts < 1 {
		attempts = 1
	}
	if !s.asserted {
		for _, e := range s.exprs {
			cond, err := s.tr.Condition(e)
			if err != nil {
				return nil, fmt.Errorf("translating %q: %w", e.Text(), err)
			}
			s.clauses = append(s.clauses, cond.Not())
		}
		s.asserted = true
	}

	var last *z3.Model
	for i := 0; i < attempts; i++ {
		sat, err := s.check()
		if err != nil {
			var unk *z3.ErrSatUnknown
			if errors.As(err, &unk) {
				if last != nil {
					return s.result(Sat, last), nil
				}
				return s.result(Unknown, nil), nil
			}
			return nil, fmt.Errorf("checking satisfiability: %w", err)
		}
		if !sat {
			if last != nil {
				return s.result(Sat, last), nil
			}
			return s.result(Unsat, nil), nil
		}
		model := s.solver.Model()
		if i == attempts-1 || !s.block(model, i) {
			return s.result(Sat, model), nil
		}
		last = model
	}
	return s.result(Sat, last), nil
}

// check runs a fresh solver over the accumulated clauses, first with
// the bias and then without it if the biased problem is unsatisfiable.
func (s *Session) check() (bool, error) {
	sat, err := s.checkFn(s.bias)
	if err == nil && !sat && len(s.bias) > 0 {
		s.bias = nil
		sat, err = s.checkFn(nil)
	}
	return sat, err
}

func (s *Session) checkWith(bias []z3.Bool) (bool, error) {
	s.solver = z3.NewSolver(s.ctx)
	for _, c := range s.clauses {
		s.solver.Assert(c)
	}
	for _, b := range bias {
		s.solver.Assert(b)
	}
	return s.solver.Check()
}

func (s *Session) block(model *z3.Model, iteration int) bool {
	one := s.ctx.FromInt(1, s.ctx.IntSort()).(z3.Int)
	s.bias = nil
	var differs []z3.Bool
	for _, name := range s.tr.Vars() {
		v, _ := s.tr.Var(name)
		if iteration%2 == 0 {
			s.bias = append(s.bias, v.GE(one))
		}
		val := model.Eval(v, true).(z3.Int)
		differs = append(differs, v.Eq(val).Not())
	}
	if len(differs) == 0 {
		return false
	}
	clause := differs[0]
	for _, d := range differs[1:] {
		clause = clause.Or(d)
	}
	s.clauses = append(s.clauses, clause)
	return true
}

func (s *Session) result(status Status, model *z3.Model) *Result {
	return &Result{
		Status: status,
		Vars:   s.tr.Vars(),
		Model:  model,
		Solver: s.solver,
		tr:     s.tr,
	}
}

// Solve is shorthand for NewSession(exprs).Solve(attempts).
func Solve(exprs []*expr.Node, attempts int) (*Result, error) {
	return NewSession(exprs).Solve(attempts)
}

// Has reports whether name is a tracked variable.
func (r *Result) Has(name string) bool {
	_, ok := r.tr.Var(name)
	return ok
}

// Int returns the model's value for the tracked variable name. ok is
// false when there is no model, no such variable, or the model leaves
// the variable unassigned.
func (r *Result) Int(name string) (val int64, ok bool) {
	if r.Model == nil {
		return 0, false
	}
	v, found := r.tr.Var(name)
	if !found {
		return 0, false
	}
	n, isLiteral, fits := r.Model.Eval(v, false).(z3.Int).AsInt64()
	if !isLiteral || !fits {
		return 0, false
	}
	return n, true
}

// Assignment returns the model's integer assignment of every tracked
// variable.
func (r *Result) Assignment() map[string]*big.Int {
	out := make(map[string]*big.Int)
	if r.Model == nil {
		return out
	}
	for _, name := range r.Vars {
		v, _ := r.tr.Var(name)
		if n, isLiteral := r.Model.Eval(v, true).(z3.Int).AsBigInt(); isLiteral {
			out[name] = n
		}
	}
	return out
}
