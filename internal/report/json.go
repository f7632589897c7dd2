// Package report provides output formatters for assay results in JSON
// and human-readable text formats.
package report

import (
	"encoding/json"
	"io"

	"github.com/unbound-force/assay/internal/taxonomy"
)

// Version is the report schema version.
const Version = "0.1.0"

// JSONReport is the top-level JSON output structure for classify and
// fuzz runs.
type JSONReport struct {
	Version  string                          `json:"version"`
	Metadata taxonomy.Metadata               `json:"metadata"`
	Summary  map[taxonomy.Classification]int `json:"summary"`
	Classes  []taxonomy.ClassResult          `json:"classes"`
}

// WriteJSON writes class results as formatted JSON to the writer.
func WriteJSON(w io.Writer, classes []taxonomy.ClassResult, meta taxonomy.Metadata) error {
	if classes == nil {
		classes = []taxonomy.ClassResult{}
	}
	for i := range classes {
		if classes[i].Methods == nil {
			classes[i].Methods = []taxonomy.MethodResult{}
		}
		for j := range classes[i].Methods {
			m := &classes[i].Methods[j]
			if m.Assertions == nil {
				m.Assertions = []taxonomy.Assertion{}
			}
			if m.Faults == nil {
				m.Faults = []taxonomy.Fault{}
			}
			if m.Target.Parameters == nil {
				m.Target.Parameters = []string{}
			}
		}
	}
	report := JSONReport{
		Version:  Version,
		Metadata: meta,
		Summary:  taxonomy.Counts(classes),
		Classes:  classes,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// Branch is one explored path in an exploration report.
type Branch struct {
	Constraints string `json:"constraints"`
	Sat         bool   `json:"sat"`
}

// Exploration is the result of symbolically exploring one method.
type Exploration struct {
	Method      string   `json:"method"`
	Branches    []Branch `json:"branches"`
	Coverage    []int    `json:"coverage"`
	Steps       int      `json:"steps"`
	Truncated   bool     `json:"truncated"`
	Interesting string   `json:"interesting,omitempty"`
}

// ExploreReport is the top-level JSON output of the explore command.
type ExploreReport struct {
	Version  string            `json:"version"`
	Metadata taxonomy.Metadata `json:"metadata"`
	Methods  []Exploration     `json:"methods"`
}

// WriteExploreJSON writes exploration results as formatted JSON.
func WriteExploreJSON(w io.Writer, methods []Exploration, meta taxonomy.Metadata) error {
	if methods == nil {
		methods = []Exploration{}
	}
	for i := range methods {
		if methods[i].Branches == nil {
			methods[i].Branches = []Branch{}
		}
		if methods[i].Coverage == nil {
			methods[i].Coverage = []int{}
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExploreReport{Version: Version, Metadata: meta, Methods: methods})
}
