package solver_test

import (
	"errors"
	"testing"

	"github.com/unbound-force/assay/internal/expr"
	"github.com/unbound-force/assay/internal/solver"
)

func mustParse(t *testing.T, src string) *expr.Node {
	t.Helper()
	n, err := expr.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", src, err)
	}
	return n
}

func TestSolve_Status(t *testing.T) {
	tests := []struct {
		src  string
		want solver.Status
	}{
		// Negation unsatisfiable: holds for every input.
		{"amount + 10 > amount", solver.Unsat},
		{"x == x", solver.Unsat},
		{"x * 0 == 0", solver.Unsat},
		{"!(x < x)", solver.Unsat},
		{"x + 0.5 > x", solver.Unsat},
		{"true", solver.Unsat},
		{"'a' == 97", solver.Unsat},
		{"p.get() >= p.get()", solver.Unsat},

		// Negation satisfiable.
		{"x > 0 && x < 10", solver.Sat},
		{"balance - 10 > balance", solver.Sat},
		{"x / 2 == 3", solver.Sat},
		{"x % 2 == 0 || x > 5", solver.Sat},
		{"false", solver.Sat},
		{"a.length > 0", solver.Sat},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			res, err := solver.Solve([]*expr.Node{mustParse(t, tt.src)}, 1)
			if err != nil {
				t.Fatalf("Solve() error: %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("Status = %s, want %s", res.Status, tt.want)
			}
			if (res.Model != nil) != (tt.want == solver.Sat) {
				t.Errorf("Model present = %v for status %s", res.Model != nil, res.Status)
			}
		})
	}
}

func TestSolve_NegatesEverySharedAssertion(t *testing.T) {
	exprs := []*expr.Node{mustParse(t, "x > 0"), mustParse(t, "x < 0")}
	res, err := solver.Solve(exprs, 1)
	if err != nil {
		t.Fatalf("Solve() error: %v", err)
	}
	// x <= 0 and x >= 0 leaves x = 0.
	if res.Status != solver.Sat {
		t.Fatalf("Status = %s, want sat", res.Status)
	}
	if v, ok := res.Int("x"); !ok || v != 0 {
		t.Errorf("Int(x) = %d, %v, want 0, true", v, ok)
	}
}

func TestSolve_ModelFalsifiesAssertion(t *testing.T) {
	res, err := solver.Solve([]*expr.Node{mustParse(t, "x > 0 && x < 10")}, 1)
	if err != nil {
		t.Fatalf("Solve() error: %v", err)
	}
	x, ok := res.Int("x")
	if !ok {
		t.Fatal("no value for x")
	}
	if x > 0 && x < 10 {
		t.Errorf("model x = %d satisfies the assertion", x)
	}
}

func TestSolve_DistinctModels(t *testing.T) {
	src := "x > 0 && x < 10"
	seen := map[int64]int{}
	for n := 1; n <= 4; n++ {
		res, err := solver.Solve([]*expr.Node{mustParse(t, src)}, n)
		if err != nil {
			t.Fatalf("Solve(%d) error: %v", n, err)
		}
		x, ok := res.Int("x")
		if !ok {
			t.Fatalf("Solve(%d): no value for x", n)
		}
		if prev, dup := seen[x]; dup {
			t.Errorf("Solve(%d) repeated model x = %d from Solve(%d)", n, x, prev)
		}
		seen[x] = n
	}
}

func TestSolve_ExhaustedReturnsLastModel(t *testing.T) {
	// The negation admits exactly x = 0 and x = 1.
	res, err := solver.Solve([]*expr.Node{mustParse(t, "x < 0 || x > 1")}, 5)
	if err != nil {
		t.Fatalf("Solve() error: %v", err)
	}
	if res.Status != solver.Sat || res.Model == nil {
		t.Fatalf("Status = %s, Model = %v, want sat with model", res.Status, res.Model)
	}
	if x, ok := res.Int("x"); !ok || (x != 0 && x != 1) {
		t.Errorf("Int(x) = %d, %v", x, ok)
	}
}

func TestSolve_UndecidedWithoutModel(t *testing.T) {
	s := solver.NewSession([]*expr.Node{mustParse(t, "x > 0")})
	solver.GiveUpAfter(s, 0)

	res, err := s.Solve(3)
	if err != nil {
		t.Fatalf("Solve() error: %v", err)
	}
	if res.Status != solver.Unknown || res.Model != nil {
		t.Errorf("Status = %s, Model = %v, want unknown without model", res.Status, res.Model)
	}
}

func TestSolve_UndecidedKeepsLastModel(t *testing.T) {
	s := solver.NewSession([]*expr.Node{mustParse(t, "x > 0")})
	solver.GiveUpAfter(s, 1)

	res, err := s.Solve(3)
	if err != nil {
		t.Fatalf("Solve() error: %v", err)
	}
	if res.Status != solver.Sat || res.Model == nil {
		t.Fatalf("Status = %s, Model = %v, want sat with model", res.Status, res.Model)
	}
	if x, ok := res.Int("x"); !ok || x > 0 {
		t.Errorf("Int(x) = %d, %v, want a value with x <= 0", x, ok)
	}
}

func TestSolve_NoVariablesStopsEarly(t *testing.T) {
	res, err := solver.Solve([]*expr.Node{mustParse(t, "1 > 2")}, 3)
	if err != nil {
		t.Fatalf("Solve() error: %v", err)
	}
	if res.Status != solver.Sat || res.Model == nil {
		t.Errorf("Status = %s, Model = %v, want sat with model", res.Status, res.Model)
	}
	if len(res.Vars) != 0 {
		t.Errorf("Vars = %v, want none", res.Vars)
	}
}

func TestSolve_TracksVariablesInOrder(t *testing.T) {
	res, err := solver.Solve([]*expr.Node{mustParse(t, "b > a && p.get() != b")}, 1)
	if err != nil {
		t.Fatalf("Solve() error: %v", err)
	}
	want := []string{"b", "a", "p.get()"}
	if len(res.Vars) != len(want) {
		t.Fatalf("Vars = %v, want %v", res.Vars, want)
	}
	for i := range want {
		if res.Vars[i] != want[i] {
			t.Errorf("Vars[%d] = %q, want %q", i, res.Vars[i], want[i])
		}
	}
	if !res.Has("p.get()") || res.Has("q") {
		t.Error("Has() mismatch")
	}
	if got := len(res.Assignment()); got != 3 {
		t.Errorf("Assignment() has %d entries, want 3", got)
	}
}

func TestSolve_UnhandledConstruct(t *testing.T) {
	tests := []string{
		"a & b",
		"x > 0 ? true : false",
		"arr[0] > 1",
		`s == "x"`,
		"x << 2 > 0",
		"x + 1",
		"flag && x",
		"(int) d > 0",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := solver.Solve([]*expr.Node{mustParse(t, src)}, 1)
			if !errors.Is(err, solver.ErrUnhandledConstruct) {
				t.Fatalf("error = %v, want ErrUnhandledConstruct", err)
			}
			var ce *solver.ConstructError
			if !errors.As(err, &ce) {
				t.Fatalf("error %v is not a *ConstructError", err)
			}
			if ce.Text == "" {
				t.Error("ConstructError.Text is empty")
			}
		})
	}
}
