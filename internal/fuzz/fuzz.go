package fuzz

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/assay/internal/args"
	"github.com/unbound-force/assay/internal/config"
	"github.com/unbound-force/assay/internal/invoker"
	"github.com/unbound-force/assay/internal/oracle"
	"github.com/unbound-force/assay/internal/signature"
	"github.com/unbound-force/assay/internal/taxonomy"
)

// Options configures a Fuzzer.
type Options struct {
	// Config supplies the iteration budget, fault limit and minimum
	// depth. If nil, defaults are used.
	Config *config.AssayConfig

	// Oracle runs the method under test. Required.
	Oracle oracle.Oracle

	// Generator is the single random stream for the run.
	Generator *args.Generator

	// Names are the parameter names in declaration order, used for
	// wrong-input records. Missing names default to arg0, arg1, ...
	Names []string

	// Seeds are initial inputs, typically symbolic witnesses. Each
	// is run once to learn its depth.
	Seeds []args.Tuple

	// Seed is used when Seeds yields nothing. If nil, a random input
	// is generated.
	Seed args.Tuple

	Logger *log.Logger
}

// Fuzzer runs coverage-guided fuzzing of one method. It is not safe
// for concurrent use.
type Fuzzer struct {
	method signature.Method
	oracle oracle.Oracle
	gen    *args.Generator
	mut    *Mutator
	corpus *Corpus
	names  []string
	seeds  []args.Tuple
	seed   args.Tuple
	cfg    config.FuzzConfig
	logger *log.Logger
	faults []taxonomy.Fault
}

// New returns a fuzzer for method.
func New(method signature.Method, opts Options) *Fuzzer {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Generator == nil {
		opts.Generator = args.NewGenerator(opts.Config.Fuzz.Seed)
	}
	names := make([]string, len(method.Params))
	for i := range names {
		names[i] = fmt.Sprintf("arg%d", i)
		if i < len(opts.Names) && opts.Names[i] != "" {
			names[i] = opts.Names[i]
		}
	}
	return &Fuzzer{
		method: method,
		oracle: opts.Oracle,
		gen:    opts.Generator,
		mut:    NewMutator(opts.Generator),
		corpus: NewCorpus(),
		names:  names,
		seeds:  opts.Seeds,
		seed:   opts.Seed,
		cfg:    opts.Config.Fuzz,
		logger: opts.Logger,
	}
}

// Corpus returns the fuzzer's corpus.
func (f *Fuzzer) Corpus() *Corpus { return f.corpus }

// Result summarizes a fuzzing run.
type Result struct {
	Faults     []taxonomy.Fault
	Iterations int
	Depths     []int
}

func (f *Fuzzer) run(ctx context.Context, input args.Tuple) (oracle.Result, error) {
	return f.oracle.Run(ctx, oracle.Request{
		Method: f.method.ID(),
		Inputs: input.String(),
	})
}

// discard reports outcomes that say nothing about coverage.
func discard(r oracle.Result) bool {
	return r.Message == oracle.MessageAssertionError || r.Message == oracle.MessageTimeout
}

// Seed fills the corpus. Seeds are run and stored under the depth they
// reach; when none is usable the caller seed, or else a random input,
// is stored at depth 0.
func (f *Fuzzer) Seed(ctx context.Context) error {
	for _, s := range f.seeds {
		res, err := f.run(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Debug("seed run failed", "method", f.method.ID(), "input", s.String(), "err", err)
			continue
		}
		if discard(res) {
			continue
		}
		f.corpus.Offer(res.Depth, s)
	}
	if f.corpus.Len() > 0 {
		return nil
	}
	seed := f.seed
	if seed == nil {
		seed = f.gen.Tuple(f.method.Params)
	}
	f.corpus.Offer(0, seed)
	return nil
}

// Run fuzzes until the iteration budget is spent or the fault limit is
// reached. Each iteration mutates a corpus witness and runs it with
// assertions enabled. Inputs that reach a new depth are kept; crashes
// at a new depth that no assertion guards are localized and reported.
func (f *Fuzzer) Run(ctx context.Context) (*Result, error) {
	if f.oracle == nil {
		return nil, fmt.Errorf("fuzzing %s: no oracle", f.method.ID())
	}
	if f.corpus.Len() == 0 {
		if err := f.Seed(ctx); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	for res.Iterations < f.cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Iterations++

		candidate := f.mut.Mutate(f.corpus.Pick(f.gen.Rand()))
		out, err := f.run(ctx, candidate)
		if err != nil {
			f.logger.Debug("oracle call failed", "method", f.method.ID(), "input", candidate.String(), "err", err)
			continue
		}
		if discard(out) {
			continue
		}

		if !f.corpus.Has(out.Depth) {
			if err := f.newCoverage(ctx, candidate, out); err != nil {
				return nil, err
			}
			if len(f.faults) >= f.cfg.MaxFaults {
				break
			}
			continue
		}
		f.corpus.Offer(out.Depth, candidate)
	}

	res.Faults = f.faults
	res.Depths = f.corpus.Depths()
	return res, nil
}

func (f *Fuzzer) newCoverage(ctx context.Context, input args.Tuple, out oracle.Result) error {
	f.corpus.Offer(out.Depth, input)
	f.logger.Info("new coverage", "method", f.method.ID(), "depth", out.Depth, "message", out.Message, "input", input.String())

	if out.Benign() || out.Depth < f.cfg.MinDepth {
		return nil
	}

	// 1. Confirm the crash is not stopped by an assertion.
	check, err := f.run(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Debug("confirmation run failed", "method", f.method.ID(), "err", err)
		return nil
	}
	if check.Depth != out.Depth {
		f.logger.Debug("crash guarded by assertion", "method", f.method.ID(), "depth", out.Depth)
		return nil
	}

	// 2. Localize the fault per argument position.
	wrong, err := f.Localize(ctx, input)
	if err != nil {
		return err
	}
	fault := taxonomy.Fault{
		Message:     out.Message,
		Depth:       out.Depth,
		Input:       input.String(),
		WrongInputs: wrong,
		Suggestion:  SuggestAssertion(wrong),
	}
	f.faults = append(f.faults, fault)
	f.logger.Info("unguarded fault", "method", f.method.ID(), "message", fault.Message, "input", fault.Input, "suggestion", fault.Suggestion)
	return nil
}

// Localize returns one WrongInput per argument of input. For each
// position it searches for a replacement value, taken from a mutated
// corpus witness, that still runs the method to at least the minimum
// depth. The first such run decides: the position is faulty when it
// completes normally, meaning changing that value alone clears the
// fault. A position with no such run is not faulty.
func (f *Fuzzer) Localize(ctx context.Context, input args.Tuple) ([]taxonomy.WrongInput, error) {
	if f.corpus.Len() == 0 {
		f.corpus.Offer(0, input)
	}
	out := make([]taxonomy.WrongInput, len(input))
	for i, v := range input {
		found, err := f.replace(ctx, input, i)
		if err != nil {
			return nil, err
		}
		p := f.method.Params[i]
		out[i] = wrongInput(f.names[i], p, v, found != nil && found.OK())
	}
	return out, nil
}

func (f *Fuzzer) replace(ctx context.Context, input args.Tuple, idx int) (*oracle.Result, error) {
	for range f.cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mutated := f.mut.Mutate(f.corpus.Pick(f.gen.Rand()))[idx]
		if args.Equal(mutated, input[idx]) {
			continue
		}
		candidate := input.Clone()
		candidate[idx] = mutated
		res, err := f.run(ctx, candidate)
		if err != nil {
			continue
		}
		if res.Depth >= f.cfg.MinDepth && !discard(res) {
			return &res, nil
		}
	}
	return nil, nil
}

// wrongInput records an argument. Composite arguments are reported by
// their first constructor field under the "<name>.get()" accessor.
func wrongInput(name string, p signature.Param, v args.Value, faulty bool) taxonomy.WrongInput {
	wi := taxonomy.WrongInput{Name: name, Value: args.Format(v), Faulty: faulty, IsObj: signature.IsObj(p)}
	if obj, ok := v.(args.Object); ok {
		wi.Name = invoker.ObjectVar(name)
		if len(obj.Fields) > 0 {
			wi.Value = args.Format(obj.Fields[0])
		}
	}
	return wi
}

// SuggestAssertion builds an assert statement that excludes the
// faulty argument values. When no position is faulty every position is
// used.
func SuggestAssertion(wrong []taxonomy.WrongInput) string {
	anyFaulty := false
	for _, w := range wrong {
		anyFaulty = anyFaulty || w.Faulty
	}
	var conds []string
	for _, w := range wrong {
		if w.Faulty || !anyFaulty {
			conds = append(conds, w.Name+" != "+w.Value)
		}
	}
	if len(conds) == 0 {
		return ""
	}
	return "assert " + strings.Join(conds, " || ") + ";"
}
