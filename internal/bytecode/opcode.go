// Package bytecode models the stack-machine instruction stream of a
// method and decodes it from the JSON form produced by jvm2json.
package bytecode

import (
	"fmt"
	"strings"
)

// Op is one instruction. The implementations form a closed set; code
// that cannot be decoded becomes Unknown.
type Op interface {
	isOp()
	String() string
}

// Cond is a comparison condition of a conditional jump.
type Cond string

// Conditions.
const (
	Eq    Cond = "eq"
	Ne    Cond = "ne"
	Lt    Cond = "lt"
	Le    Cond = "le"
	Gt    Cond = "gt"
	Ge    Cond = "ge"
	Is    Cond = "is"
	IsNot Cond = "isnot"
)

// Negate returns the complementary condition.
func (c Cond) Negate() Cond {
	switch c {
	case Eq:
		return Ne
	case Ne:
		return Eq
	case Lt:
		return Ge
	case Ge:
		return Lt
	case Le:
		return Gt
	case Gt:
		return Le
	case Is:
		return IsNot
	case IsNot:
		return Is
	}
	return c
}

// BinaryOp is an arithmetic operator.
type BinaryOp string

// Arithmetic operators.
const (
	Add BinaryOp = "add"
	Sub BinaryOp = "sub"
	Mul BinaryOp = "mul"
	Div BinaryOp = "div"
	Rem BinaryOp = "rem"
)

// Value is a constant pushed by Push. Null constants have Type "null".
type Value struct {
	Type string
	Int  int64
}

// Field names a class field.
type Field struct {
	Class string
	Name  string
	Type  string
}

// Push pushes a constant.
type Push struct{ Value Value }

// Load pushes local variable Index.
type Load struct {
	Type  string
	Index int
}

// Store pops into local variable Index.
type Store struct {
	Type  string
	Index int
}

// Binary pops two operands and pushes the result of Operator.
type Binary struct {
	Type     string
	Operator BinaryOp
}

// Negate replaces the top of the stack with its negation.
type Negate struct{ Type string }

// Ifz pops one value and jumps to Target if it compares with zero
// (or null) under Cond.
type Ifz struct {
	Cond   Cond
	Target int
}

// If pops two values and jumps to Target if they compare under Cond.
type If struct {
	Cond   Cond
	Target int
}

// Return leaves the method.
type Return struct{ Type string }

// Dup duplicates the top Words stack entries.
type Dup struct{ Words int }

// Incr adds Amount to local variable Index.
type Incr struct {
	Index  int
	Amount int64
}

// Goto jumps to Target.
type Goto struct{ Target int }

// Get reads a field; instance reads pop the object.
type Get struct {
	Static bool
	Field  Field
}

// Put writes a field; instance writes pop the object and the value.
type Put struct {
	Static bool
	Field  Field
}

// NewArray allocates an array with Dim dimension lengths popped from
// the stack.
type NewArray struct {
	Type string
	Dim  int
}

// ArrayStore pops a value, an index and an array.
type ArrayStore struct{ Type string }

// ArrayLoad pops an index and an array and pushes the element.
type ArrayLoad struct{ Type string }

// ArrayLength pops an array and pushes its length.
type ArrayLength struct{}

// New allocates an object of Class.
type New struct{ Class string }

// Invoke calls a method. Access is one of static, virtual, special,
// interface or dynamic.
type Invoke struct {
	Access  string
	Class   string
	Name    string
	Args    []string
	Returns string
}

// Cast converts the top of the stack.
type Cast struct{ From, To string }

// Throw raises the exception on top of the stack.
type Throw struct{}

// Unknown is an instruction without a model.
type Unknown struct{ Opr string }

func (Push) isOp()        {}
func (Load) isOp()        {}
func (Store) isOp()       {}
func (Binary) isOp()      {}
func (Negate) isOp()      {}
func (Ifz) isOp()         {}
func (If) isOp()          {}
func (Return) isOp()      {}
func (Dup) isOp()         {}
func (Incr) isOp()        {}
func (Goto) isOp()        {}
func (Get) isOp()         {}
func (Put) isOp()         {}
func (NewArray) isOp()    {}
func (ArrayStore) isOp()  {}
func (ArrayLoad) isOp()   {}
func (ArrayLength) isOp() {}
func (New) isOp()         {}
func (Invoke) isOp()      {}
func (Cast) isOp()        {}
func (Throw) isOp()       {}
func (Unknown) isOp()     {}

// Static reports whether the call has no receiver.
func (i Invoke) Static() bool { return i.Access == "static" || i.Access == "dynamic" }

// Void reports whether the call produces no value.
func (i Invoke) Void() bool { return i.Returns == "" || i.Returns == "void" }

func (o Push) String() string {
	if o.Value.Type == "null" {
		return "push null"
	}
	return fmt.Sprintf("push %s %d", o.Value.Type, o.Value.Int)
}
func (o Load) String() string        { return fmt.Sprintf("load %s %d", o.Type, o.Index) }
func (o Store) String() string       { return fmt.Sprintf("store %s %d", o.Type, o.Index) }
func (o Binary) String() string      { return fmt.Sprintf("binary %s %s", o.Type, o.Operator) }
func (o Negate) String() string      { return "negate " + o.Type }
func (o Ifz) String() string         { return fmt.Sprintf("ifz %s %d", o.Cond, o.Target) }
func (o If) String() string          { return fmt.Sprintf("if %s %d", o.Cond, o.Target) }
func (o Return) String() string      { return strings.TrimSpace("return " + o.Type) }
func (o Dup) String() string         { return fmt.Sprintf("dup %d", o.Words) }
func (o Incr) String() string        { return fmt.Sprintf("incr %d %d", o.Index, o.Amount) }
func (o Goto) String() string        { return fmt.Sprintf("goto %d", o.Target) }
func (o Get) String() string         { return "get " + o.Field.Class + "." + o.Field.Name }
func (o Put) String() string         { return "put " + o.Field.Class + "." + o.Field.Name }
func (o NewArray) String() string    { return fmt.Sprintf("newarray %s %d", o.Type, o.Dim) }
func (o ArrayStore) String() string  { return "array_store " + o.Type }
func (o ArrayLoad) String() string   { return "array_load " + o.Type }
func (o ArrayLength) String() string { return "arraylength" }
func (o New) String() string         { return "new " + o.Class }
func (o Invoke) String() string {
	return fmt.Sprintf("invoke %s %s.%s/%d", o.Access, o.Class, o.Name, len(o.Args))
}
func (o Cast) String() string    { return fmt.Sprintf("cast %s %s", o.From, o.To) }
func (o Throw) String() string   { return "throw" }
func (o Unknown) String() string { return o.Opr + " (unmodeled)" }
