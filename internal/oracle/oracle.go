// Package oracle defines the boundary to the external method executor:
// given a method id and a formatted argument tuple it reports an outcome
// message and a coverage depth.
package oracle

import (
	"context"
	"errors"
)

// Outcome messages with a fixed meaning. Any other message names a
// fault kind such as "divide by zero" or "out of bounds".
const (
	MessageOK             = "ok"
	MessageAssertionError = "assertion error"
	MessageTimeout        = "timeout"
)

// ErrInvocation is returned when the executor cannot be run or its
// output cannot be understood.
var ErrInvocation = errors.New("oracle invocation failed")

// Request is one method execution.
type Request struct {
	// Method is the full method id.
	Method string

	// Inputs is the argument tuple, e.g. "(1,true,[I:2,3])".
	Inputs string

	// AssertionsDisabled runs the method with assert statements
	// turned off.
	AssertionsDisabled bool
}

// Result is the executor's report for one Request.
type Result struct {
	Message string `json:"message"`

	// Depth grows with how far execution progressed. Zero means the
	// method body was never entered.
	Depth int `json:"depth"`
}

// OK reports whether the method completed normally.
func (r Result) OK() bool { return r.Message == MessageOK }

// Benign reports whether the outcome carries no fault information:
// normal completion, a tripped assertion, or a timeout.
func (r Result) Benign() bool {
	switch r.Message {
	case MessageOK, MessageAssertionError, MessageTimeout:
		return true
	}
	return false
}

// Oracle executes methods.
type Oracle interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, req Request) (Result, error)

// Run calls f.
func (f Func) Run(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
