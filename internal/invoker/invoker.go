// Package invoker turns solver models into concrete argument tuples and
// runs them through the oracle.
package invoker

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/assay/internal/args"
	"github.com/unbound-force/assay/internal/oracle"
	"github.com/unbound-force/assay/internal/signature"
)

// Model supplies integer assignments for tracked variable names.
// *solver.Result implements it.
type Model interface {
	Int(name string) (int64, bool)
}

// Options configures an Invoker.
type Options struct {
	// Attempts bounds argument regeneration while the oracle reports
	// that the method body was never entered.
	Attempts int

	// Generator supplies random values for unconstrained parameters.
	Generator *args.Generator

	Logger *log.Logger
}

// Invoker executes one method with model-derived arguments.
type Invoker struct {
	method   signature.Method
	oracle   oracle.Oracle
	gen      *args.Generator
	attempts int
	logger   *log.Logger
}

// New returns an invoker for method.
func New(method signature.Method, o oracle.Oracle, opts Options) *Invoker {
	if opts.Attempts < 1 {
		opts.Attempts = 10
	}
	if opts.Generator == nil {
		opts.Generator = args.NewGenerator(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Invoker{
		method:   method,
		oracle:   o,
		gen:      opts.Generator,
		attempts: opts.Attempts,
		logger:   opts.Logger,
	}
}

// ObjectVar returns the synthetic variable that carries a composite
// parameter's value, e.g. "p.get()".
func ObjectVar(param string) string { return param + ".get()" }

// BuildArguments produces one value per parameter. order names the
// parameters positionally. A parameter takes the model's value of its
// own variable, or for composites of its ObjectVar, converted to the
// parameter's tag; anything the model does not constrain is generated
// at random. model may be nil.
func (iv *Invoker) BuildArguments(order []string, model Model) args.Tuple {
	out := make(args.Tuple, len(iv.method.Params))
	for i, p := range iv.method.Params {
		name := ""
		if i < len(order) {
			name = order[i]
		}
		if v, ok := iv.fromModel(p, name, model); ok {
			out[i] = v
			continue
		}
		out[i] = iv.gen.Param(p)
	}
	return out
}

func (iv *Invoker) fromModel(p signature.Param, name string, model Model) (args.Value, bool) {
	if model == nil || name == "" {
		return nil, false
	}
	n, ok := model.Int(name)
	if !ok {
		if _, composite := p.(signature.Composite); composite {
			n, ok = model.Int(ObjectVar(name))
		}
	}
	if !ok {
		return nil, false
	}
	switch p := p.(type) {
	case signature.Primitive:
		return convert(p.Tag, n), true
	case signature.Composite:
		fields := make([]args.Value, len(p.Ctor))
		for i, c := range p.Ctor {
			if prim, isPrim := c.(signature.Primitive); isPrim {
				fields[i] = convert(prim.Tag, n)
				continue
			}
			fields[i] = iv.gen.Param(c)
		}
		return args.Object{Class: p.Name, Fields: fields}, true
	}
	return nil, false
}

// convert maps a model integer onto tag.
func convert(tag signature.Tag, n int64) args.Value {
	switch tag {
	case signature.Boolean:
		return args.Bool{V: n != 0}
	case signature.Char:
		return args.CharOf(n)
	case signature.Float, signature.Double:
		return args.Float{Tag: tag, V: float64(n)}
	}
	return args.Int{Tag: tag, V: args.Wrap(tag, n)}
}

// Invoke builds arguments and runs the method with assertions
// disabled. While the oracle reports depth 0 with a non-"ok" message,
// the arguments are regenerated, up to the configured attempts. An
// oracle error is retried the same way and surfaces only when no
// attempt produced a result.
func (iv *Invoker) Invoke(ctx context.Context, order []string, model Model) (oracle.Result, args.Tuple, error) {
	var (
		res     oracle.Result
		tuple   args.Tuple
		have    bool
		lastErr error
	)
	for attempt := 1; attempt <= iv.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return oracle.Result{}, nil, err
		}
		candidate := iv.BuildArguments(order, model)
		r, err := iv.oracle.Run(ctx, oracle.Request{
			Method:             iv.method.ID(),
			Inputs:             candidate.String(),
			AssertionsDisabled: true,
		})
		if err != nil {
			lastErr = err
			iv.logger.Debug("oracle call failed", "method", iv.method.ID(), "attempt", attempt, "err", err)
			continue
		}
		res, tuple, have = r, candidate, true
		if r.OK() || r.Depth > 0 {
			break
		}
		iv.logger.Debug("method body not entered, regenerating arguments",
			"method", iv.method.ID(), "inputs", candidate.String(), "attempt", attempt)
	}
	if !have {
		return oracle.Result{}, nil, fmt.Errorf("%w: %s: %w", oracle.ErrInvocation, iv.method.ID(), lastErr)
	}
	return res, tuple, nil
}
