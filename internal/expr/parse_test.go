package expr_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/unbound-force/assay/internal/expr"
)

// shape renders a tree as a compact s-expression of kinds and ops.
func shape(n *expr.Node) string {
	var sb strings.Builder
	var walk func(*expr.Node)
	walk = func(n *expr.Node) {
		if n.NumChildren() == 0 {
			sb.WriteString(n.Text())
			return
		}
		sb.WriteString("(" + string(n.Kind()))
		if n.Op() != "" {
			sb.WriteString(" " + n.Op())
		}
		for _, c := range n.Children() {
			sb.WriteString(" ")
			walk(c)
		}
		sb.WriteString(")")
	}
	walk(n)
	return sb.String()
}

func TestParse_Precedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"x > 0 && x < 10", "(binary_expression && (binary_expression > x 0) (binary_expression < x 10))"},
		{"a + b * c", "(binary_expression + a (binary_expression * b c))"},
		{"a - b - c", "(binary_expression - (binary_expression - a b) c)"},
		{"!(a || b)", "(unary_expression ! (parenthesized_expression (binary_expression || a b)))"},
		{"amount + 10 > amount", "(binary_expression > (binary_expression + amount 10) amount)"},
		{"-x == 3", "(binary_expression == (unary_expression - x) 3)"},
		{"a == b != c", "(binary_expression != (binary_expression == a b) c)"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			n, err := expr.Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if got := shape(n); got != tt.want {
				t.Errorf("shape = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParse_Kinds(t *testing.T) {
	tests := []struct {
		src  string
		want expr.Kind
	}{
		{"42", expr.IntLiteral},
		{"42L", expr.IntLiteral},
		{"0xFF", expr.IntLiteral},
		{"1.5", expr.DecimalLiteral},
		{"2f", expr.DecimalLiteral},
		{"'c'", expr.CharLiteral},
		{`"s"`, expr.StringLiteral},
		{"true", expr.True},
		{"false", expr.False},
		{"null", expr.Null},
		{"balance", expr.Identifier},
		{"this.balance", expr.FieldAccess},
		{"arr[i]", expr.ArrayAccess},
		{"p.get()", expr.Call},
		{"check(x, y)", expr.Call},
		{"x++", expr.Update},
		{"--x", expr.Update},
		{"x = 5", expr.Assignment},
		{"x += 1", expr.Assignment},
		{"c ? a : b", expr.Ternary},
		{"(int) d", expr.Cast},
		{"o instanceof String", expr.InstanceOf},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			n, err := expr.Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if n.Kind() != tt.want {
				t.Errorf("Kind() = %s, want %s", n.Kind(), tt.want)
			}
		})
	}
}

func TestParse_CallText(t *testing.T) {
	n, err := expr.Parse("p.get() > 0")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	call := n.Child(0)
	if call.Text() != "p.get()" {
		t.Errorf("Text() = %q, want %q", call.Text(), "p.get()")
	}
	if call.Op() != "get" {
		t.Errorf("Op() = %q, want get", call.Op())
	}
	if recv := call.Receiver(); recv == nil || recv.Text() != "p" {
		t.Errorf("Receiver() = %v, want p", recv)
	}
	if len(call.Args()) != 0 {
		t.Errorf("Args() = %d, want 0", len(call.Args()))
	}
}

func TestParse_ParenthesizedNameIsNotCast(t *testing.T) {
	n, err := expr.Parse("(a) + b")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if n.Kind() != expr.Binary {
		t.Errorf("Kind() = %s, want binary", n.Kind())
	}
}

func TestParseAssertion(t *testing.T) {
	tests := []struct {
		stmt string
		want string
	}{
		{"assert x > 0;", "x > 0"},
		{"assert(x != 0);", "(x != 0)"},
		{`assert n >= 0 : "negative";`, "n >= 0"},
		{"x < 10", "x < 10"},
		{"assertOk", "assertOk"},
	}
	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			n, err := expr.ParseAssertion(tt.stmt)
			if err != nil {
				t.Fatalf("ParseAssertion() error: %v", err)
			}
			if n.Text() != tt.want {
				t.Errorf("Text() = %q, want %q", n.Text(), tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{"", "x >", "(a", "a b", "'x", "x # y"} {
		t.Run(src, func(t *testing.T) {
			if _, err := expr.Parse(src); !errors.Is(err, expr.ErrSyntax) {
				t.Errorf("Parse(%q) error = %v, want ErrSyntax", src, err)
			}
		})
	}
}

func TestMutates(t *testing.T) {
	changes := func(m string) bool { return m == "withdraw" }
	tests := []struct {
		src  string
		want bool
	}{
		{"x > 0", false},
		{"x++ > 0", true},
		{"(y = 3) > 0", true},
		{"acct.withdraw(5) > 0", true},
		{"acct.balance() > 0", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			n, err := expr.Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if got := expr.Mutates(n, changes); got != tt.want {
				t.Errorf("Mutates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFind(t *testing.T) {
	n, err := expr.Parse("a + b.c() > d[0]")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	got := expr.Find(n, expr.Identifier)
	var names []string
	for _, g := range got {
		names = append(names, g.Text())
	}
	if strings.Join(names, ",") != "a,b,d" {
		t.Errorf("identifiers = %v, want [a b d]", names)
	}
}
