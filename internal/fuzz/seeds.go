package fuzz

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/assay/internal/args"
	"github.com/unbound-force/assay/internal/invoker"
	"github.com/unbound-force/assay/internal/signature"
	"github.com/unbound-force/assay/internal/symexec"
)

// SymbolicSeeds explores the method symbolically and turns each
// satisfiable path into an argument tuple. Parameters a path leaves
// unconstrained, and non-integral parameters, get random values from
// gen. Records whose re-solve fails are skipped.
func SymbolicSeeds(ctx context.Context, method signature.Method, e *symexec.Explorer, gen *args.Generator, logger *log.Logger) ([]args.Tuple, error) {
	if logger == nil {
		logger = log.Default()
	}
	res, err := e.Explore(ctx)
	if err != nil {
		return nil, err
	}
	iv := invoker.New(method, nil, invoker.Options{Generator: gen, Logger: logger})
	names := e.Names()

	var seeds []args.Tuple
	for _, rec := range res.Sat() {
		w, err := e.Witness(rec)
		if err != nil {
			logger.Debug("skipping seed", "method", method.ID(), "err", err)
			continue
		}
		seeds = append(seeds, iv.BuildArguments(names, w))
	}
	logger.Debug("symbolic seeds", "method", method.ID(), "branches", len(res.Branches), "seeds", len(seeds))
	return seeds, nil
}
