// Package symexec explores the paths of a method's instruction stream
// symbolically. Branch conditions are collected as Z3 path constraints
// and infeasible paths are pruned as they appear.
package symexec

import (
	"fmt"
	"maps"
	"strings"

	"github.com/aclements/go-z3/z3"

	"github.com/unbound-force/assay/internal/bytecode"
)

// Value is a stack or local slot. The implementations are Symbolic and
// Concrete.
type Value interface {
	isValue()
	String() string
}

// Symbolic is a value described by a formula.
type Symbolic struct {
	Expr z3.Int
}

// Concrete is a literal from the instruction stream.
type Concrete struct {
	Lit bytecode.Value
}

func (Symbolic) isValue() {}
func (Concrete) isValue() {}

func (s Symbolic) String() string { return s.Expr.AsAST().String() }
func (c Concrete) String() string {
	if c.Lit.Type == "null" {
		return "null"
	}
	return fmt.Sprint(c.Lit.Int)
}

// State is the abstract machine state of one path. Heap entries are
// placeholders keyed by allocation offset and never alias.
type State struct {
	Locals map[int]Value
	Stack  []Value
	Heap   map[int]Value
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Locals: make(map[int]Value), Heap: make(map[int]Value)}
}

// Clone returns a copy that shares no mutable structure with s. Values
// themselves are immutable.
func (s *State) Clone() *State {
	return &State{
		Locals: maps.Clone(s.Locals),
		Stack:  append([]Value(nil), s.Stack...),
		Heap:   maps.Clone(s.Heap),
	}
}

func (s *State) push(v Value) { s.Stack = append(s.Stack, v) }

func (s *State) pop() (Value, error) {
	if len(s.Stack) == 0 {
		return nil, fmt.Errorf("%w: operand stack underflow", ErrStepFailure)
	}
	v := s.Stack[len(s.Stack)-1]
	s.Stack = s.Stack[:len(s.Stack)-1]
	return v, nil
}

func (s *State) popN(n int) error {
	for range n {
		if _, err := s.pop(); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) String() string {
	if len(s.Stack) == 0 {
		return "ϵ"
	}
	parts := make([]string, len(s.Stack))
	for i, v := range s.Stack {
		parts[i] = v.String()
	}
	return strings.Join(parts, " ")
}

// PC is a program counter. Within a method, counters order by offset.
type PC struct {
	Method string
	Offset int
}

// Less reports whether p precedes q in the same method.
func (p PC) Less(q PC) bool { return p.Method == q.Method && p.Offset < q.Offset }

// Next returns the counter of the following instruction.
func (p PC) Next() PC { return PC{Method: p.Method, Offset: p.Offset + 1} }

func (p PC) String() string { return fmt.Sprintf("%s:%d", p.Method, p.Offset) }

// Path is an ordered list of constraints. Extending a path never
// modifies it.
type Path []z3.Bool

// Extend returns p followed by delta.
func (p Path) Extend(delta ...z3.Bool) Path {
	out := make(Path, 0, len(p)+len(delta))
	out = append(out, p...)
	return append(out, delta...)
}

// Key renders the constraints; equal paths have equal keys.
func (p Path) Key() string {
	parts := make([]string, len(p))
	for i, c := range p {
		parts[i] = c.AsAST().String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// BranchRecord is a path seen during exploration and whether it was
// satisfiable.
type BranchRecord struct {
	Constraints string `json:"constraints"`
	Sat         bool   `json:"sat"`

	path Path
}

// Status returns "SAT" or "UNSAT".
func (b BranchRecord) Status() string {
	if b.Sat {
		return "SAT"
	}
	return "UNSAT"
}

func (b BranchRecord) String() string {
	return fmt.Sprintf("Branch: %s, Status: %s", b.Constraints, b.Status())
}

// Continuation is one successor of a step.
type Continuation struct {
	PC    PC
	State *State
	Delta []z3.Bool
}
