package symexec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aclements/go-z3/z3"
	"github.com/charmbracelet/log"
	"golang.org/x/tools/container/intsets"

	"github.com/unbound-force/assay/internal/bytecode"
	"github.com/unbound-force/assay/internal/config"
)

var (
	// ErrUnmodeledOpcode marks an instruction that is skipped without
	// effect on the state.
	ErrUnmodeledOpcode = errors.New("unmodeled opcode")

	// ErrStepFailure marks a frame that could not be stepped. Only that
	// frame is abandoned.
	ErrStepFailure = errors.New("step failure")
)

// Interesting inspects a frame before it is stepped. A non-empty
// result stops the exploration and is reported.
type Interesting func(pc PC, st *State, path Path) string

// Options configures an Explorer.
type Options struct {
	// Config supplies depth and step bounds. If nil, defaults are used.
	Config *config.AssayConfig

	// Interesting may stop the run early. Nil never stops it.
	Interesting Interesting

	Logger *log.Logger
}

// Explorer runs depth-first symbolic execution over one method. It
// owns a Z3 context and is not safe for concurrent use.
type Explorer struct {
	ctx    *z3.Context
	id     string
	method bytecode.Method
	names  []string
	params map[string]z3.Int
	serial int

	maxDepth    int
	maxSteps    int
	interesting Interesting
	logger      *log.Logger
}

// New returns an explorer for method, identified by id in program
// counters. names gives the parameter names in declaration order;
// missing names default to arg0, arg1 and so on.
func New(id string, method bytecode.Method, names []string, opts Options) *Explorer {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	e := &Explorer{
		ctx:         z3.NewContext(nil),
		id:          id,
		method:      method,
		params:      make(map[string]z3.Int),
		maxDepth:    opts.Config.SymExec.MaxDepth,
		maxSteps:    opts.Config.SymExec.MaxSteps,
		interesting: opts.Interesting,
		logger:      opts.Logger,
	}
	for i := range method.Params {
		name := fmt.Sprintf("arg%d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		e.names = append(e.names, name)
	}
	return e
}

// Initial returns the entry state: one symbolic variable per parameter,
// placed in its local slot. Long and double parameters take two slots.
func (e *Explorer) Initial() *State {
	st := NewState()
	slot := 0
	if !e.method.Static {
		st.Locals[0] = Symbolic{Expr: e.freshInt("this")}
		slot = 1
	}
	for i, typ := range e.method.Params {
		v := e.ctx.IntConst(e.names[i])
		e.params[e.names[i]] = v
		st.Locals[slot] = Symbolic{Expr: v}
		slot += bytecode.Width(typ)
	}
	return st
}

// Result is the outcome of one exploration.
type Result struct {
	// Branches holds each distinct non-empty path checked, in the
	// order first seen.
	Branches []BranchRecord

	// Coverage is the set of visited instruction offsets.
	Coverage intsets.Sparse

	// Steps counts stepped frames.
	Steps int

	// Truncated is set when the step budget ran out.
	Truncated bool

	// Interesting is the report of the predicate that stopped the
	// run, if any.
	Interesting string
}

// Offsets returns the visited offsets in ascending order.
func (r *Result) Offsets() []int {
	return r.Coverage.AppendTo(nil)
}

// Sat returns the satisfiable records.
func (r *Result) Sat() []BranchRecord {
	var out []BranchRecord
	for _, b := range r.Branches {
		if b.Sat {
			out = append(out, b)
		}
	}
	return out
}

type frame struct {
	pc    PC
	state *State
	path  Path
	depth int
}

// Explore runs from offset 0 until the frame stack is empty, the step
// budget is spent, or the interesting predicate reports. A frame is
// pushed only while its depth stays below the maximum depth.
func (e *Explorer) Explore(ctx context.Context) (*Result, error) {
	res := &Result{}
	seen := make(map[string]bool)
	stack := []frame{{pc: PC{Method: e.id}, state: e.Initial()}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if res.Steps >= e.maxSteps {
			res.Truncated = true
			e.logger.Debug("step budget exhausted", "method", e.id, "steps", res.Steps, "pending", len(stack))
			break
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		res.Steps++
		res.Coverage.Insert(f.pc.Offset)

		if e.interesting != nil {
			if issue := e.interesting(f.pc, f.state, f.path); issue != "" {
				res.Interesting = issue
				return res, nil
			}
		}

		next, err := e.Step(f.pc, f.state)
		if err != nil {
			e.logger.Warn("abandoning frame", "pc", f.pc, "depth", f.depth, "err", err)
			continue
		}

		for _, c := range next {
			path := f.path.Extend(c.Delta...)
			sat, err := e.check(path)
			if err != nil {
				e.logger.Warn("abandoning path", "pc", c.PC, "err", err)
				continue
			}
			if len(path) > 0 {
				key := path.Key()
				if !seen[key] {
					seen[key] = true
					res.Branches = append(res.Branches, BranchRecord{Constraints: key, Sat: sat, path: path})
				}
			}
			if !sat {
				e.logger.Debug("path unsatisfiable, pruning", "pc", c.PC)
				continue
			}
			if f.depth+1 >= e.maxDepth {
				e.logger.Debug("reached max depth", "pc", c.PC, "depth", f.depth+1)
				continue
			}
			stack = append(stack, frame{pc: c.PC, state: c.State, path: path, depth: f.depth + 1})
		}
	}
	return res, nil
}

// check decides path with a fresh solver. An unknown answer counts as
// an error.
func (e *Explorer) check(path Path) (bool, error) {
	s := z3.NewSolver(e.ctx)
	for _, c := range path {
		s.Assert(c)
	}
	return s.Check()
}

// Witness is a model of one satisfiable path, restricted to the
// method's parameters.
type Witness struct {
	model  *z3.Model
	params map[string]z3.Int
}

// Int returns the witness value of parameter name.
func (w *Witness) Int(name string) (int64, bool) {
	v, ok := w.params[name]
	if !ok {
		return 0, false
	}
	n, isLiteral, fits := w.model.Eval(v, true).(z3.Int).AsInt64()
	return n, isLiteral && fits
}

// Witness re-solves rec independently and returns its model.
func (e *Explorer) Witness(rec BranchRecord) (*Witness, error) {
	s := z3.NewSolver(e.ctx)
	for _, c := range rec.path {
		s.Assert(c)
	}
	sat, err := s.Check()
	if err != nil {
		return nil, fmt.Errorf("re-solving %s: %w", rec.Constraints, err)
	}
	if !sat {
		return nil, fmt.Errorf("re-solving %s: path is unsatisfiable", rec.Constraints)
	}
	return &Witness{model: s.Model(), params: e.params}, nil
}

// Names returns the parameter variable names in declaration order.
func (e *Explorer) Names() []string {
	return append([]string(nil), e.names...)
}

func (e *Explorer) freshInt(prefix string) z3.Int {
	e.serial++
	return e.ctx.IntConst(fmt.Sprintf("%s!%d", prefix, e.serial))
}

func (e *Explorer) fresh(prefix string) Value {
	return Symbolic{Expr: e.freshInt(strings.ReplaceAll(prefix, "$", ""))}
}

func (e *Explorer) lit(n int64) z3.Int {
	return e.ctx.FromInt(n, e.ctx.IntSort()).(z3.Int)
}

// formula converts a slot value to an integer term. Null is zero.
func (e *Explorer) formula(v Value) z3.Int {
	switch v := v.(type) {
	case Symbolic:
		return v.Expr
	case Concrete:
		return e.lit(v.Lit.Int)
	}
	panic(fmt.Sprintf("symexec: unexpected value %T", v))
}
