// Package classify implements the assertion classification engine for
// assay. Each assertion goes through a syntactic side-effect check, a
// solver-based base classification, and, when contingent, an
// oracle-backed refinement into useful or useless.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/assay/internal/args"
	"github.com/unbound-force/assay/internal/config"
	"github.com/unbound-force/assay/internal/expr"
	"github.com/unbound-force/assay/internal/invoker"
	"github.com/unbound-force/assay/internal/oracle"
	"github.com/unbound-force/assay/internal/signature"
	"github.com/unbound-force/assay/internal/solver"
	"github.com/unbound-force/assay/internal/taxonomy"
)

// Options configures the classification engine.
type Options struct {
	// Config is the assay configuration. If nil, defaults are used.
	Config *config.AssayConfig

	// Oracle runs methods for the advanced stage. If nil, contingent
	// assertions are left contingent.
	Oracle oracle.Oracle

	// Generator supplies values for parameters the model leaves free.
	Generator *args.Generator

	// ChangesState reports whether calling the named method mutates
	// program state. Nil treats every call as pure.
	ChangesState func(method string) bool

	Logger *log.Logger
}

// Classify classifies every unclassified assertion in results in place
// and returns results. Failures stay local to one assertion: it keeps
// its current classification and the failure is recorded in Reason.
func Classify(ctx context.Context, results []taxonomy.MethodResult, opts Options) []taxonomy.MethodResult {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Generator == nil {
		opts.Generator = args.NewGenerator(opts.Config.Fuzz.Seed)
	}

	for i := range results {
		mr := &results[i]

		var iv *invoker.Invoker
		var params []string
		if opts.Oracle != nil {
			sig, err := signature.Parse(mr.Target.ID)
			if err != nil {
				opts.Logger.Warn("skipping advanced classification", "method", mr.Target.QualifiedName(), "err", err)
			} else {
				iv = invoker.New(sig, opts.Oracle, invoker.Options{
					Attempts:  opts.Config.Solver.InvokeAttempts,
					Generator: opts.Generator,
					Logger:    opts.Logger,
				})
				params = mr.Target.Parameters
			}
		}

		for j := range mr.Assertions {
			a := &mr.Assertions[j]
			if a.Classification != "" && a.Classification != taxonomy.Unclassified {
				continue
			}
			if err := classifyOne(ctx, a, iv, params, opts); err != nil {
				a.Reason = err.Error()
				opts.Logger.Warn("assertion left unclassified",
					"method", mr.Target.QualifiedName(), "expression", a.Expression, "err", err)
			}
		}
	}
	return results
}

func classifyOne(ctx context.Context, a *taxonomy.Assertion, iv *invoker.Invoker, params []string, opts Options) error {
	if a.Classification == "" {
		a.Classification = taxonomy.Unclassified
	}
	node, err := expr.ParseAssertion(a.Expression)
	if err != nil {
		return err
	}

	// 1. Syntactic side-effect check.
	if expr.Mutates(node, opts.ChangesState) {
		a.Reason = "expression changes program state"
		return a.Refine(taxonomy.SideEffect)
	}

	// 2. Base classification from the negated assertion.
	res, err := solver.Solve([]*expr.Node{node}, 1)
	if err != nil {
		if errors.Is(err, solver.ErrUnhandledConstruct) {
			return err
		}
		return fmt.Errorf("solving: %w", err)
	}
	base := Base(res)
	if err := a.Refine(base); err != nil {
		return err
	}
	a.Reason = baseReason(base, res)
	if base != taxonomy.Contingent || iv == nil {
		return nil
	}

	// 3. Advanced classification. A useful verdict at depth 0 is
	// inconclusive, so try further distinct models.
	retries := opts.Config.Solver.ClassifierRetries
	var verdict Verdict
	for attempt := 1; ; attempt++ {
		verdict = Advanced(ctx, iv, params, res)
		if verdict.Classification != taxonomy.Useful || verdict.Depth != 0 || attempt >= retries {
			break
		}
		next, err := solver.Solve([]*expr.Node{node}, attempt+1)
		if err != nil || next.Model == nil {
			break
		}
		opts.Logger.Debug("retrying with next model", "expression", a.Expression, "attempt", attempt+1)
		res = next
	}
	a.Reason = verdict.Reason
	return a.Refine(verdict.Classification)
}

// Base maps a solver result onto the base classification table.
func Base(res *solver.Result) taxonomy.Classification {
	switch res.Status {
	case solver.Unsat:
		return taxonomy.Tautology
	case solver.Sat:
		if res.Model != nil {
			return taxonomy.Contingent
		}
		return taxonomy.Contradiction
	}
	return taxonomy.Unclassified
}

func baseReason(c taxonomy.Classification, res *solver.Result) string {
	switch c {
	case taxonomy.Tautology:
		return "negation is unsatisfiable"
	case taxonomy.Contingent:
		return fmt.Sprintf("negation satisfiable with %v", res.Assignment())
	case taxonomy.Contradiction:
		return "negation satisfiable without a model"
	}
	return "solver returned " + string(res.Status)
}

// Verdict is the outcome of one advanced classification run.
type Verdict struct {
	Classification taxonomy.Classification
	Depth          int
	Reason         string
}

// Advanced runs the method with the model's falsifying inputs and
// assertions disabled. If the method then fails, the assertion guards
// a fault and is useful; otherwise it is useless.
func Advanced(ctx context.Context, iv *invoker.Invoker, params []string, model invoker.Model) Verdict {
	res, tuple, err := iv.Invoke(ctx, params, model)
	if err != nil {
		return Verdict{
			Classification: taxonomy.Useful,
			Reason:         "invocation failed: " + err.Error(),
		}
	}
	if !res.OK() {
		return Verdict{
			Classification: taxonomy.Useful,
			Depth:          res.Depth,
			Reason:         fmt.Sprintf("%s at depth %d for %s", res.Message, res.Depth, tuple),
		}
	}
	return Verdict{
		Classification: taxonomy.Useless,
		Depth:          res.Depth,
		Reason:         fmt.Sprintf("ok for %s", tuple),
	}
}

// Group collects method results into per-class results in first-seen
// order and computes each class's average assertions per method.
func Group(results []taxonomy.MethodResult) []taxonomy.ClassResult {
	var out []taxonomy.ClassResult
	index := make(map[string]int)
	for _, mr := range results {
		i, ok := index[mr.Target.Class]
		if !ok {
			i = len(out)
			index[mr.Target.Class] = i
			out = append(out, taxonomy.ClassResult{Class: mr.Target.Class})
		}
		out[i].Methods = append(out[i].Methods, mr)
	}
	for i := range out {
		total := 0
		for _, m := range out[i].Methods {
			total += len(m.Assertions)
		}
		out[i].AssertionsPerMethod = float64(total) / float64(len(out[i].Methods))
	}
	return out
}
