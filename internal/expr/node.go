// Package expr provides an immutable syntax tree for assertion
// expressions and a parser for the Java-like expression text found in
// assert statements.
package expr

// Kind identifies the syntactic category of a Node.
type Kind string

// Node kinds.
const (
	IntLiteral     Kind = "int_literal"
	DecimalLiteral Kind = "decimal_literal"
	CharLiteral    Kind = "char_literal"
	StringLiteral  Kind = "string_literal"
	True           Kind = "true"
	False          Kind = "false"
	Null           Kind = "null"
	Identifier     Kind = "identifier"
	FieldAccess    Kind = "field_access"
	ArrayAccess    Kind = "array_access"
	Call           Kind = "method_invocation"
	Paren          Kind = "parenthesized_expression"
	Unary          Kind = "unary_expression"
	Binary         Kind = "binary_expression"
	Ternary        Kind = "ternary_expression"
	Cast           Kind = "cast_expression"
	InstanceOf     Kind = "instanceof_expression"
	Assignment     Kind = "assignment_expression"
	Update         Kind = "update_expression"
)

// IsLiteral reports whether k is one of the literal kinds.
func (k Kind) IsLiteral() bool {
	switch k {
	case IntLiteral, DecimalLiteral, CharLiteral, StringLiteral, True, False, Null:
		return true
	}
	return false
}

// Node is one expression tree node. Nodes are never modified after
// the parser builds them.
type Node struct {
	kind     Kind
	op       string
	text     string
	children []*Node

	// receiver marks a Call whose first child is the receiver object.
	receiver bool
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Op returns the operator for unary, binary, assignment and update
// nodes, the member name for field accesses and calls, and the type
// name for casts and instanceof checks.
func (n *Node) Op() string { return n.op }

// Text returns the source text the node was parsed from.
func (n *Node) Text() string { return n.text }

// NumChildren returns the number of child nodes.
func (n *Node) NumChildren() int { return len(n.children) }

// Child returns the i-th child.
func (n *Node) Child(i int) *Node { return n.children[i] }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Receiver returns the receiver of a qualified call such as
// "p.get()", or nil.
func (n *Node) Receiver() *Node {
	if n.kind != Call || !n.receiver {
		return nil
	}
	return n.children[0]
}

// Args returns the argument list of a call.
func (n *Node) Args() []*Node {
	if n.kind != Call {
		return nil
	}
	if n.receiver {
		return n.children[1:]
	}
	return n.children
}

// Walk calls fn for n and every descendant in pre-order. Returning
// false from fn skips that node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.children {
		Walk(c, fn)
	}
}

// Find returns every node in the tree whose kind is one of kinds.
func Find(n *Node, kinds ...Kind) []*Node {
	var out []*Node
	Walk(n, func(c *Node) bool {
		for _, k := range kinds {
			if c.kind == k {
				out = append(out, c)
				break
			}
		}
		return true
	})
	return out
}

// Mutates reports whether evaluating n changes program state: the tree
// contains an assignment or update, or calls a method for which
// changesState returns true. changesState may be nil.
func Mutates(n *Node, changesState func(method string) bool) bool {
	found := false
	Walk(n, func(c *Node) bool {
		switch c.kind {
		case Assignment, Update:
			found = true
		case Call:
			if changesState != nil && changesState(c.op) {
				found = true
			}
		}
		return !found
	})
	return found
}
