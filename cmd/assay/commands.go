package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unbound-force/assay/internal/args"
	"github.com/unbound-force/assay/internal/classify"
	"github.com/unbound-force/assay/internal/fuzz"
	"github.com/unbound-force/assay/internal/report"
	"github.com/unbound-force/assay/internal/signature"
	"github.com/unbound-force/assay/internal/symexec"
	"github.com/unbound-force/assay/internal/taxonomy"
)

// classifyParams holds the parsed flags for the classify command.
type classifyParams struct {
	commonParams
	static bool
}

// runClassify is the extracted, testable body of the classify command.
func runClassify(ctx context.Context, p classifyParams) error {
	s, err := openSession(p.commonParams)
	if err != nil {
		return err
	}

	opts := classify.Options{
		Config:       s.cfg,
		Generator:    args.NewGenerator(s.cfg.Fuzz.Seed),
		ChangesState: s.suite.ChangesState,
		Logger:       logger,
	}
	if !p.static {
		opts.Oracle = s.oracle
	}

	logger.Info("classifying assertions", "methods", len(s.methods))
	results := classify.Classify(ctx, s.methods, opts)
	if err := ctx.Err(); err != nil {
		return err
	}
	s.finish()

	classes := classify.Group(results)
	logger.Info("classification complete", "methods", len(results))
	return writeResults(p.commonParams, s, classes)
}

func newClassifyCmd() *cobra.Command {
	var p classifyParams

	cmd := &cobra.Command{
		Use:   "classify <suite.yaml>",
		Short: "Classify the assertions of a suite",
		Long: `Classify every assertion listed in the suite manifest as a
tautology, contradiction, side effect, useful or useless check.
Contingent assertions are refined by running the method through the
configured oracle with assertions disabled, unless --static is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			p.suitePath = a[0]
			p.verbose, _ = cmd.Flags().GetBool("verbose")
			p.stdout, p.stderr = os.Stdout, os.Stderr
			return runClassify(cmd.Context(), p)
		},
	}
	addCommonFlags(cmd, &p.commonParams)
	cmd.Flags().BoolVar(&p.static, "static", false,
		"skip oracle-backed refinement; contingent assertions stay contingent")
	return cmd
}

// fuzzParams holds the parsed flags for the fuzz command.
type fuzzParams struct {
	commonParams
	iterations int
	seed       uint64
	classify   bool
}

// runFuzz is the extracted, testable body of the fuzz command.
func runFuzz(ctx context.Context, p fuzzParams) error {
	s, err := openSession(p.commonParams)
	if err != nil {
		return err
	}
	if p.iterations > 0 {
		s.cfg.Fuzz.Iterations = p.iterations
	}
	if p.seed != 0 {
		s.cfg.Fuzz.Seed = p.seed
	}
	gen := args.NewGenerator(s.cfg.Fuzz.Seed)

	if p.classify {
		s.methods = classify.Classify(ctx, s.methods, classify.Options{
			Config:       s.cfg,
			Oracle:       s.oracle,
			Generator:    gen,
			ChangesState: s.suite.ChangesState,
			Logger:       logger,
		})
	}

	for i := range s.methods {
		mr := &s.methods[i]
		faults, err := fuzzMethod(ctx, s, mr.Target, gen)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("fuzzing failed", "method", mr.Target.ID, "err", err)
			s.warn(fmt.Sprintf("fuzzing %s: %v", mr.Target.ID, err))
			continue
		}
		mr.Faults = faults
	}
	s.finish()

	return writeResults(p.commonParams, s, classify.Group(s.methods))
}

// fuzzMethod fuzzes one method, seeding the corpus from symbolic
// exploration when enabled and the method's bytecode is available.
func fuzzMethod(ctx context.Context, s *session, target taxonomy.MethodTarget, gen *args.Generator) ([]taxonomy.Fault, error) {
	sig, err := signature.Parse(target.ID)
	if err != nil {
		return nil, err
	}

	var seeds []args.Tuple
	if s.cfg.Fuzz.SymbolicSeeds {
		code, err := s.suite.Code(target)
		if err != nil {
			logger.Warn("no bytecode for symbolic seeding", "method", target.ID, "err", err)
		} else {
			e := symexec.New(target.ID, code, target.Parameters, symexec.Options{Config: s.cfg, Logger: logger})
			seeds, err = fuzz.SymbolicSeeds(ctx, sig, e, gen, logger)
			if err != nil {
				return nil, fmt.Errorf("symbolic seeding: %w", err)
			}
		}
	}

	logger.Info("fuzzing", "method", target.ID, "seeds", len(seeds), "iterations", s.cfg.Fuzz.Iterations)
	f := fuzz.New(sig, fuzz.Options{
		Config:    s.cfg,
		Oracle:    s.oracle,
		Generator: gen,
		Names:     target.Parameters,
		Seeds:     seeds,
		Logger:    logger,
	})
	res, err := f.Run(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("fuzzing complete", "method", target.ID, "iterations", res.Iterations, "depths", res.Depths, "faults", len(res.Faults))
	return res.Faults, nil
}

func newFuzzCmd() *cobra.Command {
	var p fuzzParams

	cmd := &cobra.Command{
		Use:   "fuzz <suite.yaml>",
		Short: "Fuzz suite methods for unguarded faults",
		Long: `Run coverage-guided fuzzing on each method of the suite with
assertions enabled. Crashes that reach a new depth and are not stopped
by an assertion are localized to the arguments that cause them, and
an assert statement that would guard them is suggested.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			p.suitePath = a[0]
			p.verbose, _ = cmd.Flags().GetBool("verbose")
			p.stdout, p.stderr = os.Stdout, os.Stderr
			return runFuzz(cmd.Context(), p)
		},
	}
	addCommonFlags(cmd, &p.commonParams)
	cmd.Flags().IntVar(&p.iterations, "iterations", 0,
		"fuzzing iterations per method (default: from config)")
	cmd.Flags().Uint64Var(&p.seed, "seed", 0,
		"random seed (default: from config)")
	cmd.Flags().BoolVar(&p.classify, "classify", false,
		"also classify the suite's assertions")
	return cmd
}

// runExplore is the extracted, testable body of the explore command.
func runExplore(ctx context.Context, p commonParams) error {
	s, err := openSession(p)
	if err != nil {
		return err
	}

	var explored []report.Exploration
	for _, mr := range s.methods {
		code, err := s.suite.Code(mr.Target)
		if err != nil {
			logger.Warn("skipping exploration", "method", mr.Target.ID, "err", err)
			s.warn(fmt.Sprintf("exploring %s: %v", mr.Target.ID, err))
			continue
		}
		e := symexec.New(mr.Target.ID, code, mr.Target.Parameters, symexec.Options{Config: s.cfg, Logger: logger})
		res, err := e.Explore(ctx)
		if err != nil {
			return err
		}
		explored = append(explored, exploration(mr.Target.ID, res))
	}
	s.finish()

	if p.interactive {
		var body strings.Builder
		if err := report.WriteExploreText(&body, explored); err != nil {
			return err
		}
		return runInteractive("assay explore: "+p.suitePath, body.String())
	}
	switch p.format {
	case "json":
		return report.WriteExploreJSON(p.stdout, explored, s.meta)
	default:
		return report.WriteExploreText(p.stdout, explored)
	}
}

func exploration(id string, res *symexec.Result) report.Exploration {
	out := report.Exploration{
		Method:      id,
		Coverage:    res.Offsets(),
		Steps:       res.Steps,
		Truncated:   res.Truncated,
		Interesting: res.Interesting,
	}
	for _, b := range res.Branches {
		out.Branches = append(out.Branches, report.Branch{Constraints: b.Constraints, Sat: b.Sat})
	}
	return out
}

func newExploreCmd() *cobra.Command {
	var p commonParams

	cmd := &cobra.Command{
		Use:   "explore <suite.yaml>",
		Short: "Symbolically explore suite methods",
		Long: `Run depth-first symbolic execution over the bytecode of each
suite method and report every distinct path condition checked, whether
it is satisfiable, and the instruction offsets covered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			p.suitePath = a[0]
			p.verbose, _ = cmd.Flags().GetBool("verbose")
			p.stdout, p.stderr = os.Stdout, os.Stderr
			return runExplore(cmd.Context(), p)
		},
	}
	addCommonFlags(cmd, &p)
	return cmd
}
