// Package taxonomy defines the assertion classification vocabulary,
// core result structures, and stable ID generation for assay analysis
// results.
package taxonomy

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Classification is the semantic verdict for a single assertion.
type Classification string

// Classification constants. The set is closed.
const (
	Unclassified  Classification = "unclassified"
	Tautology     Classification = "tautology"
	Contingent    Classification = "contingent"
	Contradiction Classification = "contradiction"
	SideEffect    Classification = "side_effect"
	Useful        Classification = "useful"
	Useless       Classification = "useless"
)

// AllClassifications lists the vocabulary in report order.
var AllClassifications = []Classification{
	Tautology, Contingent, Contradiction, SideEffect,
	Useful, Useless, Unclassified,
}

// ErrInvalidTransition is returned when a classification would move
// backward or sideways.
var ErrInvalidTransition = errors.New("invalid classification transition")

// ParseClassification returns the Classification named by s.
func ParseClassification(s string) (Classification, error) {
	for _, c := range AllClassifications {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown classification %q", s)
}

// IsBase reports whether c is one of the base classes an unclassified
// assertion may move to.
func (c Classification) IsBase() bool {
	switch c {
	case Tautology, Contingent, Contradiction, SideEffect:
		return true
	}
	return false
}

// CanTransition reports whether an assertion classified c may be
// reclassified as next. Unclassified moves to any base class; only
// contingent refines further, into useful or useless.
func (c Classification) CanTransition(next Classification) bool {
	switch c {
	case Unclassified:
		return next.IsBase()
	case Contingent:
		return next == Useful || next == Useless
	}
	return false
}

// Span is a source range, zero-based rows and columns.
type Span struct {
	StartLine   int `json:"start_line"`
	StartColumn int `json:"start_column"`
	EndLine     int `json:"end_line"`
	EndColumn   int `json:"end_column"`
}

// Assertion is one assert statement found in a method body.
type Assertion struct {
	// ID is a stable identifier derived from the owning method and
	// source position.
	ID string `json:"id"`

	// Span locates the statement in its source file.
	Span Span `json:"span"`

	// Expression is the source text of the asserted condition.
	Expression string `json:"expression"`

	// Classification starts unclassified and is refined by Refine.
	Classification Classification `json:"classification"`

	// Reason is a short human-readable note on how the verdict was
	// reached. Omitted when empty.
	Reason string `json:"reason,omitempty"`
}

// Refine moves the assertion to next, enforcing the write-once
// refinement order. Refining to the current value is a no-op.
func (a *Assertion) Refine(next Classification) error {
	if a.Classification == "" {
		a.Classification = Unclassified
	}
	if a.Classification == next {
		return nil
	}
	if !a.Classification.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Classification, next)
	}
	a.Classification = next
	return nil
}

// MethodTarget identifies the method under analysis.
type MethodTarget struct {
	// Class is the fully qualified class name.
	Class string `json:"class"`

	// Method is the simple method name.
	Method string `json:"method"`

	// ID is the full method id including its descriptor, e.g.
	// "jpamb.cases.Simple.div:(II)I".
	ID string `json:"id"`

	// Parameters lists parameter names in declaration order.
	Parameters []string `json:"parameters"`

	// Location is the source file of the declaring class.
	Location string `json:"location,omitempty"`
}

// QualifiedName returns "Class.method".
func (mt MethodTarget) QualifiedName() string {
	if mt.Class == "" {
		return mt.Method
	}
	return mt.Class + "." + mt.Method
}

// WrongInput records one argument position of a discovered fault.
type WrongInput struct {
	// Name is the parameter name; composite parameters carry a
	// ".get()" suffix.
	Name string `json:"name"`

	// Value is the argument text at the fault.
	Value string `json:"value"`

	// Faulty is true when changing only this position, with every
	// other argument kept, makes the method complete normally.
	Faulty bool `json:"faulty"`

	// IsObj is true when the argument is array or composite shaped.
	IsObj bool `json:"is_obj"`
}

// Fault is one unguarded crash found by fuzzing.
type Fault struct {
	// Message is the oracle fault kind, e.g. "divide by zero".
	Message string `json:"message"`

	// Depth is the coverage depth at which the fault occurred.
	Depth int `json:"depth"`

	// Input is the formatted argument tuple that triggered it.
	Input string `json:"input"`

	// WrongInputs has exactly one entry per argument position.
	WrongInputs []WrongInput `json:"wrong_inputs"`

	// Suggestion is an assert statement that would guard the fault.
	Suggestion string `json:"suggestion,omitempty"`
}

// Metadata holds analysis run metadata.
type Metadata struct {
	AssayVersion string        `json:"assay_version"`
	Timestamp    time.Time     `json:"-"`
	Duration     time.Duration `json:"-"`
	Warnings     []string      `json:"warnings"`
}

// MarshalJSON customizes JSON encoding to use duration_ms and
// ISO 8601 timestamp.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type Alias Metadata
	ts := ""
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.UTC().Format(time.RFC3339)
	}
	if m.Warnings == nil {
		m.Warnings = []string{}
	}
	return json.Marshal(&struct {
		Alias
		DurationMS int64  `json:"duration_ms"`
		Timestamp  string `json:"timestamp,omitempty"`
	}{
		Alias:      Alias(m),
		DurationMS: m.Duration.Milliseconds(),
		Timestamp:  ts,
	})
}

// MethodResult is the complete output for one method.
type MethodResult struct {
	// Target identifies the analyzed method.
	Target MethodTarget `json:"target"`

	// Assertions lists every assertion with its verdict.
	Assertions []Assertion `json:"assertions"`

	// Faults lists unguarded crashes found by fuzzing. Empty when
	// fuzzing was not run.
	Faults []Fault `json:"faults"`
}

// ClassResult groups method results for one class.
type ClassResult struct {
	// Class is the fully qualified class name.
	Class string `json:"class"`

	// AssertionsPerMethod is the average number of assertions per
	// method of the class.
	AssertionsPerMethod float64 `json:"assertions_per_method"`

	// Methods holds per-method results.
	Methods []MethodResult `json:"methods"`
}

// Counts tallies assertions by classification.
func Counts(classes []ClassResult) map[Classification]int {
	counts := make(map[Classification]int)
	for _, c := range classes {
		for _, m := range c.Methods {
			for _, a := range m.Assertions {
				counts[a.Classification]++
			}
		}
	}
	return counts
}

// GenerateID produces a stable, deterministic ID for an assertion
// based on its context. The ID is a sha256 hash truncated to 8 hex
// characters, prefixed with "as-".
func GenerateID(class, method string, line, column int) string {
	input := fmt.Sprintf("%s:%s:%d:%d", class, method, line, column)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("as-%x", hash[:4])
}
