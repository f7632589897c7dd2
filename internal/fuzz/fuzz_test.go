package fuzz_test

import (
	"context"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/unbound-force/assay/internal/args"
	"github.com/unbound-force/assay/internal/bytecode"
	"github.com/unbound-force/assay/internal/config"
	"github.com/unbound-force/assay/internal/fuzz"
	"github.com/unbound-force/assay/internal/oracle"
	"github.com/unbound-force/assay/internal/signature"
	"github.com/unbound-force/assay/internal/symexec"
	"github.com/unbound-force/assay/internal/taxonomy"
)

var quiet = log.New(io.Discard)

func mustMethod(t *testing.T, id string) signature.Method {
	t.Helper()
	m, err := signature.Parse(id)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", id, err)
	}
	return m
}

func ints(t *testing.T, inputs string) []int64 {
	t.Helper()
	var out []int64
	for _, f := range strings.Split(strings.Trim(inputs, "()"), ",") {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			t.Fatalf("oracle input %q: %v", inputs, err)
		}
		out = append(out, n)
	}
	return out
}

func tuple(vs ...int64) args.Tuple {
	out := make(args.Tuple, len(vs))
	for i, v := range vs {
		out[i] = args.Int{Tag: signature.Int, V: v}
	}
	return out
}

func testConfig(iterations int) *config.AssayConfig {
	cfg := config.DefaultConfig()
	cfg.Fuzz.Iterations = iterations
	cfg.Fuzz.Seed = 7
	return cfg
}

// divide crashes when the second argument is zero.
func divide(t *testing.T) oracle.Oracle {
	return oracle.Func(func(_ context.Context, req oracle.Request) (oracle.Result, error) {
		if req.AssertionsDisabled {
			t.Errorf("fuzzing ran with assertions disabled")
		}
		if ints(t, req.Inputs)[1] == 0 {
			return oracle.Result{Message: "divide by zero", Depth: 2}, nil
		}
		return oracle.Result{Message: oracle.MessageOK, Depth: 3}, nil
	})
}

func TestCorpus_Monotonic(t *testing.T) {
	c := fuzz.NewCorpus()

	steps := []struct {
		depth int
		input args.Tuple
		want  bool
	}{
		{3, tuple(12345), true},
		{3, tuple(123456), false},
		{3, tuple(54321), false},
		{3, tuple(7), true},
		{3, tuple(70), false},
		{5, tuple(99999), true},
	}
	for i, s := range steps {
		if got := c.Offer(s.depth, s.input); got != s.want {
			t.Errorf("step %d: Offer(%d, %s) = %v, want %v", i, s.depth, s.input, got, s.want)
		}
	}

	got, ok := c.Get(3)
	if !ok || got.String() != "(7)" {
		t.Errorf("Get(3) = %s, %v", got, ok)
	}
	got[0] = args.Int{Tag: signature.Int, V: 1_000_000}
	if again, _ := c.Get(3); again.String() != "(7)" {
		t.Errorf("Get returned shared storage: %s", again)
	}
	if diff := cmp.Diff([]int{3, 5}, c.Depths()); diff != "" {
		t.Errorf("Depths() mismatch (-want +got):\n%s", diff)
	}
}

func TestMutate_KeepsShape(t *testing.T) {
	in := args.Tuple{
		args.Int{Tag: signature.Byte, V: 100},
		args.Bool{V: true},
		args.Char{V: 'q'},
		args.Array{Elem: signature.Int, Items: []args.Value{args.Int{Tag: signature.Int, V: 1}, args.Int{Tag: signature.Int, V: 2}}},
		args.Object{Class: "jpamb/cases/PositiveInteger", Fields: []args.Value{args.Int{Tag: signature.Int, V: 5}}},
		args.Float{Tag: signature.Double, V: 1.5},
	}
	before := in.String()
	m := fuzz.NewMutator(args.NewGenerator(11))

	for _, fam := range []fuzz.Family{fuzz.Deterministic, fuzz.Havoc} {
		for i := 0; i < 200; i++ {
			out := m.MutateWith(fam, in)
			if len(out) != len(in) {
				t.Fatalf("%s: len = %d", fam, len(out))
			}
			if b, ok := out[0].(args.Int); !ok || b.Tag != signature.Byte || b.V < -128 || b.V > 127 {
				t.Fatalf("%s: byte = %#v", fam, out[0])
			}
			if _, ok := out[1].(args.Bool); !ok {
				t.Fatalf("%s: bool = %#v", fam, out[1])
			}
			if _, ok := out[2].(args.Char); !ok {
				t.Fatalf("%s: char = %#v", fam, out[2])
			}
			if a, ok := out[3].(args.Array); !ok || a.Elem != signature.Int || len(a.Items) > 1024 {
				t.Fatalf("%s: array = %#v", fam, out[3])
			}
			if o, ok := out[4].(args.Object); !ok || o.Class != "jpamb/cases/PositiveInteger" || len(o.Fields) != 1 {
				t.Fatalf("%s: object = %#v", fam, out[4])
			}
			if _, ok := out[5].(args.Float); !ok {
				t.Fatalf("%s: float = %#v", fam, out[5])
			}
		}
	}
	if in.String() != before {
		t.Errorf("input mutated in place: %s, was %s", in, before)
	}
}

func TestMutate_HavocFlipsBooleans(t *testing.T) {
	m := fuzz.NewMutator(args.NewGenerator(1))
	out := m.MutateWith(fuzz.Havoc, args.Tuple{args.Bool{V: true}})
	if out[0] != (args.Bool{V: false}) {
		t.Errorf("havoc(true) = %v, want false", out[0])
	}
}

func TestSuggestAssertion(t *testing.T) {
	tests := []struct {
		name  string
		wrong []taxonomy.WrongInput
		want  string
	}{
		{
			name: "faulty only",
			wrong: []taxonomy.WrongInput{
				{Name: "a", Value: "3"},
				{Name: "b", Value: "0", Faulty: true},
			},
			want: "assert b != 0;",
		},
		{
			name: "none faulty uses all",
			wrong: []taxonomy.WrongInput{
				{Name: "a", Value: "3"},
				{Name: "balance.get()", Value: "0", IsObj: true},
			},
			want: "assert a != 3 || balance.get() != 0;",
		},
		{name: "empty", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fuzz.SuggestAssertion(tt.wrong); got != tt.want {
				t.Errorf("SuggestAssertion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun_FindsUnguardedFault(t *testing.T) {
	m := mustMethod(t, "jpamb.cases.Simple.divide:(II)I")
	f := fuzz.New(m, fuzz.Options{
		Config: testConfig(2000),
		Oracle: divide(t),
		Names:  []string{"a", "b"},
		Seed:   tuple(5, 7),
		Logger: quiet,
	})

	res, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Faults) != 1 {
		t.Fatalf("faults = %+v, want 1", res.Faults)
	}
	fault := res.Faults[0]
	if fault.Message != "divide by zero" || fault.Depth != 2 {
		t.Errorf("fault = %+v", fault)
	}
	if len(fault.WrongInputs) != 2 {
		t.Fatalf("wrong inputs = %+v, want 2", fault.WrongInputs)
	}
	if fault.WrongInputs[0].Faulty || !fault.WrongInputs[1].Faulty {
		t.Errorf("faulty flags = %v, %v, want false, true", fault.WrongInputs[0].Faulty, fault.WrongInputs[1].Faulty)
	}
	if fault.Suggestion != "assert b != 0;" {
		t.Errorf("Suggestion = %q", fault.Suggestion)
	}
	if res.Iterations >= 2000 {
		t.Errorf("Iterations = %d, want early stop at the fault limit", res.Iterations)
	}
}

func TestRun_DiscardsAssertionErrors(t *testing.T) {
	guarded := oracle.Func(func(_ context.Context, req oracle.Request) (oracle.Result, error) {
		if ints(t, req.Inputs)[1] == 0 {
			return oracle.Result{Message: oracle.MessageAssertionError, Depth: 1}, nil
		}
		return oracle.Result{Message: oracle.MessageOK, Depth: 3}, nil
	})
	f := fuzz.New(mustMethod(t, "a.B.div:(II)I"), fuzz.Options{
		Config: testConfig(500), Oracle: guarded, Seed: tuple(5, 7), Logger: quiet,
	})

	res, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Faults) != 0 {
		t.Errorf("faults = %+v, want none", res.Faults)
	}
	if diff := cmp.Diff([]int{0, 3}, res.Depths); diff != "" {
		t.Errorf("depths mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_UnconfirmedCrashIgnored(t *testing.T) {
	// The crash depth changes on every run, so it never confirms.
	crashes := 0
	flaky := oracle.Func(func(_ context.Context, req oracle.Request) (oracle.Result, error) {
		if ints(t, req.Inputs)[1] == 0 {
			crashes++
			return oracle.Result{Message: "divide by zero", Depth: 10 + crashes}, nil
		}
		return oracle.Result{Message: oracle.MessageOK, Depth: 3}, nil
	})
	f := fuzz.New(mustMethod(t, "a.B.div:(II)I"), fuzz.Options{
		Config: testConfig(500), Oracle: flaky, Seed: tuple(5, 7), Logger: quiet,
	})

	res, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Faults) != 0 {
		t.Errorf("faults = %+v, want none", res.Faults)
	}
}

func TestRun_BelowMinDepthIgnored(t *testing.T) {
	cfg := testConfig(500)
	cfg.Fuzz.MinDepth = 5
	f := fuzz.New(mustMethod(t, "a.B.div:(II)I"), fuzz.Options{
		Config: cfg, Oracle: divide(t), Seed: tuple(5, 7), Logger: quiet,
	})

	res, err := f.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Faults) != 0 {
		t.Errorf("faults = %+v, want none", res.Faults)
	}
}

func TestRun_RequiresOracle(t *testing.T) {
	f := fuzz.New(mustMethod(t, "a.B.div:(II)I"), fuzz.Options{Logger: quiet})
	if _, err := f.Run(context.Background()); err == nil {
		t.Error("Run() error = nil, want error")
	}
}

func TestLocalize_OnePerArgument(t *testing.T) {
	m := mustMethod(t, "a.B.f:(I[ILjpamb/cases/PositiveInteger<init>I;)V")
	alwaysOK := oracle.Func(func(context.Context, oracle.Request) (oracle.Result, error) {
		return oracle.Result{Message: oracle.MessageOK, Depth: 4}, nil
	})
	f := fuzz.New(m, fuzz.Options{
		Config: testConfig(50), Oracle: alwaysOK, Names: []string{"x", "arr", "p"}, Logger: quiet,
	})
	input := args.Tuple{
		args.Int{Tag: signature.Int, V: 0},
		args.Array{Elem: signature.Int, Items: []args.Value{args.Int{Tag: signature.Int, V: 9}}},
		args.Object{Class: "jpamb/cases/PositiveInteger", Fields: []args.Value{args.Int{Tag: signature.Int, V: 0}}},
	}

	got, err := f.Localize(context.Background(), input)
	if err != nil {
		t.Fatalf("Localize() error: %v", err)
	}
	want := []taxonomy.WrongInput{
		{Name: "x", Value: "0", Faulty: true},
		{Name: "arr", Value: "[I:9]", Faulty: true, IsObj: true},
		{Name: "p.get()", Value: "0", Faulty: true, IsObj: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Localize() mismatch (-want +got):\n%s", diff)
	}
}

func TestLocalize_PersistentFaultIsNotFaulty(t *testing.T) {
	m := mustMethod(t, "a.B.div:(II)I")
	alwaysCrash := oracle.Func(func(context.Context, oracle.Request) (oracle.Result, error) {
		return oracle.Result{Message: "divide by zero", Depth: 4}, nil
	})
	f := fuzz.New(m, fuzz.Options{
		Config: testConfig(20), Oracle: alwaysCrash, Names: []string{"a", "b"}, Logger: quiet,
	})

	got, err := f.Localize(context.Background(), tuple(1, 0))
	if err != nil {
		t.Fatalf("Localize() error: %v", err)
	}
	for _, w := range got {
		if w.Faulty {
			t.Errorf("%s marked faulty although every replacement still crashes", w.Name)
		}
	}
	if s := fuzz.SuggestAssertion(got); s != "assert a != 1 || b != 0;" {
		t.Errorf("SuggestAssertion() = %q", s)
	}
}

func TestSeed(t *testing.T) {
	m := mustMethod(t, "a.B.div:(II)I")
	guarded := oracle.Func(func(_ context.Context, req oracle.Request) (oracle.Result, error) {
		if ints(t, req.Inputs)[1] == 0 {
			return oracle.Result{Message: oracle.MessageAssertionError, Depth: 1}, nil
		}
		return oracle.Result{Message: oracle.MessageOK, Depth: 3}, nil
	})

	tests := []struct {
		name       string
		seeds      []args.Tuple
		seed       args.Tuple
		wantDepths []int
		want       string
	}{
		{"symbolic seeds by depth", []args.Tuple{tuple(1, 1), tuple(2, 0)}, nil, []int{3}, "(1,1)"},
		{"caller seed when seeds unusable", []args.Tuple{tuple(2, 0)}, tuple(4, 4), []int{0}, "(4,4)"},
		{"random otherwise", nil, nil, []int{0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fuzz.New(m, fuzz.Options{Config: testConfig(10), Oracle: guarded, Seeds: tt.seeds, Seed: tt.seed, Logger: quiet})
			if err := f.Seed(context.Background()); err != nil {
				t.Fatalf("Seed() error: %v", err)
			}
			if diff := cmp.Diff(tt.wantDepths, f.Corpus().Depths()); diff != "" {
				t.Errorf("depths mismatch (-want +got):\n%s", diff)
			}
			got, _ := f.Corpus().Get(tt.wantDepths[0])
			if len(got) != 2 {
				t.Errorf("seed = %s, want two arguments", got)
			}
			if tt.want != "" && got.String() != tt.want {
				t.Errorf("seed = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSymbolicSeeds(t *testing.T) {
	m := mustMethod(t, "jpamb.cases.Simple.divide:(II)I")
	code := bytecode.Method{
		Name:    "divide",
		Static:  true,
		Params:  []string{"int", "int"},
		Returns: "int",
		Code: []bytecode.Op{
			bytecode.Load{Type: "int", Index: 0},
			bytecode.Load{Type: "int", Index: 1},
			bytecode.Binary{Type: "int", Operator: bytecode.Div},
			bytecode.Return{Type: "int"},
		},
	}
	e := symexec.New(m.ID(), code, []string{"a", "b"}, symexec.Options{Logger: quiet})

	seeds, err := fuzz.SymbolicSeeds(context.Background(), m, e, args.NewGenerator(3), quiet)
	if err != nil {
		t.Fatalf("SymbolicSeeds() error: %v", err)
	}
	if len(seeds) != 1 {
		t.Fatalf("seeds = %v, want 1", seeds)
	}
	if b, ok := seeds[0][1].(args.Int); !ok || b.V == 0 {
		t.Errorf("divisor = %#v, want non-zero int", seeds[0][1])
	}
}
