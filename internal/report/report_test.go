package report

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/unbound-force/assay/internal/taxonomy"
)

func sampleMethods() []taxonomy.MethodResult {
	target := func(method, id string, params ...string) taxonomy.MethodTarget {
		return taxonomy.MethodTarget{
			Class:      "jpamb.cases.Simple",
			Method:     method,
			ID:         id,
			Parameters: params,
			Location:   "src/main/java/jpamb/cases/Simple.java",
		}
	}
	return []taxonomy.MethodResult{
		{
			Target: target("divide", "jpamb.cases.Simple.divide:(II)I", "a", "b"),
			Assertions: []taxonomy.Assertion{
				{
					ID:             taxonomy.GenerateID("jpamb.cases.Simple", "divide", 3, 4),
					Span:           taxonomy.Span{StartLine: 3, StartColumn: 4, EndLine: 3, EndColumn: 18},
					Expression:     "b != 0",
					Classification: taxonomy.Useful,
					Reason:         "violating input reached an assertion error",
				},
				{
					ID:             taxonomy.GenerateID("jpamb.cases.Simple", "divide", 4, 4),
					Span:           taxonomy.Span{StartLine: 4, StartColumn: 4, EndLine: 4, EndColumn: 24},
					Expression:     "a > 0 && a < 0",
					Classification: taxonomy.Contradiction,
				},
			},
			Faults: []taxonomy.Fault{{
				Message: "divide by zero",
				Depth:   2,
				Input:   "(7, 0)",
				WrongInputs: []taxonomy.WrongInput{
					{Name: "a", Value: "7"},
					{Name: "b", Value: "0", Faulty: true},
				},
				Suggestion: "assert b != 0;",
			}},
		},
		{
			Target: target("withdraw", "jpamb.cases.Simple.withdraw:(I)V", "amount"),
			Assertions: []taxonomy.Assertion{
				{
					ID:             taxonomy.GenerateID("jpamb.cases.Simple", "withdraw", 9, 4),
					Span:           taxonomy.Span{StartLine: 9, StartColumn: 4, EndLine: 9, EndColumn: 30},
					Expression:     "withdraw(amount) > 0",
					Classification: taxonomy.SideEffect,
				},
				{
					ID:             taxonomy.GenerateID("jpamb.cases.Simple", "withdraw", 10, 4),
					Span:           taxonomy.Span{StartLine: 10, StartColumn: 4, EndLine: 10, EndColumn: 22},
					Expression:     "amount < 1000",
					Classification: taxonomy.Useless,
				},
			},
		},
		{
			Target: taxonomy.MethodTarget{Class: "jpamb.cases.Arrays", Method: "first", ID: "jpamb.cases.Arrays.first:([I)I"},
		},
	}
}

func sampleClasses() []taxonomy.ClassResult {
	m := sampleMethods()
	return []taxonomy.ClassResult{
		{Class: "jpamb.cases.Simple", AssertionsPerMethod: 2, Methods: m[:2]},
		{Class: "jpamb.cases.Arrays", Methods: m[2:]},
	}
}

func sampleMeta() taxonomy.Metadata {
	return taxonomy.Metadata{
		AssayVersion: "test",
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:     1500 * time.Millisecond,
	}
}

func compile(t *testing.T, schema string) *jsonschema.Schema {
	t.Helper()
	sch, err := jsonschema.UnmarshalJSON(strings.NewReader(schema))
	if err != nil {
		t.Fatalf("failed to parse schema JSON: %v", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", sch); err != nil {
		t.Fatalf("failed to add schema resource: %v", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		t.Fatalf("failed to compile schema: %v", err)
	}
	return compiled
}

func validate(t *testing.T, compiled *jsonschema.Schema, data []byte) {
	t.Helper()
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if err := compiled.Validate(inst); err != nil {
		t.Errorf("JSON output does not conform to schema:\n%v\noutput:\n%s", err, data)
	}
}

func TestWriteJSON_ValidAgainstSchema(t *testing.T) {
	compiled := compile(t, Schema)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleClasses(), sampleMeta()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	validate(t, compiled, buf.Bytes())
}

func TestWriteJSON_EmptyResults_ValidAgainstSchema(t *testing.T) {
	compiled := compile(t, Schema)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil, taxonomy.Metadata{AssayVersion: "test"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	validate(t, compiled, buf.Bytes())
}

func TestWriteJSON_Summary(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleClasses(), sampleMeta()); err != nil {
		t.Fatal(err)
	}

	var report struct {
		Version  string         `json:"version"`
		Summary  map[string]int `json:"summary"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if report.Version != Version {
		t.Errorf("version = %q, want %q", report.Version, Version)
	}
	want := map[string]int{"useful": 1, "contradiction": 1, "side_effect": 1, "useless": 1}
	if diff := cmp.Diff(want, report.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if report.Metadata["duration_ms"] != float64(1500) {
		t.Errorf("duration_ms = %v, want 1500", report.Metadata["duration_ms"])
	}
	if report.Metadata["timestamp"] != "2026-01-02T03:04:05Z" {
		t.Errorf("timestamp = %v", report.Metadata["timestamp"])
	}
}

func TestWriteJSON_ContainsFaultFields(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleClasses(), sampleMeta()); err != nil {
		t.Fatal(err)
	}

	output := buf.String()
	for _, field := range []string{
		`"wrong_inputs"`, `"faulty"`, `"is_obj"`, `"suggestion"`,
		`"assertions_per_method"`, `"span"`, `"reason"`,
	} {
		if !strings.Contains(output, field) {
			t.Errorf("JSON output missing field %s", field)
		}
	}
}

// stripANSI removes ANSI escape sequences from text for width measurement.
var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func assertFits(t *testing.T, output string) {
	t.Helper()
	const maxWidth = 80
	for i, line := range strings.Split(output, "\n") {
		plain := stripANSI(line)
		if width := utf8.RuneCountInString(plain); width > maxWidth {
			t.Errorf("line %d exceeds %d columns (%d runes): %q", i+1, maxWidth, width, plain)
		}
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleClasses(), TextOptions{}); err != nil {
		t.Fatal(err)
	}

	output := stripANSI(buf.String())
	for _, want := range []string{
		"=== jpamb.cases.Simple ===",
		"2.00 assertion(s) per method",
		"jpamb.cases.Simple.divide:(II)I",
		"b != 0",
		"contradiction",
		"fault: divide by zero at depth 2",
		"suggest: assert b != 0;",
		"No assertions.",
		"3 method(s) analyzed, 4 assertion(s), 1 unguarded fault(s)",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("text output missing %q", want)
		}
	}
	if strings.Contains(output, "violating input") {
		t.Error("reason shown without Verbose")
	}
	assertFits(t, buf.String())
}

func TestWriteText_Verbose(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleClasses(), TextOptions{Verbose: true}); err != nil {
		t.Fatal(err)
	}

	output := stripANSI(buf.String())
	if !strings.Contains(output, "violating input reached an assertion error") {
		t.Error("verbose output missing classification reason")
	}
	if !strings.Contains(output, "* b = 0") {
		t.Error("verbose output missing faulty wrong input")
	}
	assertFits(t, buf.String())
}

func TestWriteText_EmptyResults(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, nil, TextOptions{}); err != nil {
		t.Fatal(err)
	}
	output := stripANSI(buf.String())
	if !strings.Contains(output, "0 method(s) analyzed") {
		t.Error("text output should show 0 methods for empty results")
	}
	if !strings.Contains(output, "none") {
		t.Error("empty summary should read none")
	}
}

func sampleExplorations() []Exploration {
	return []Exploration{
		{
			Method: "jpamb.cases.Simple.divide:(II)I",
			Branches: []Branch{
				{Constraints: "(not (= arg1 0))", Sat: true},
				{Constraints: "(and (> arg0 0) (< arg0 0))", Sat: false},
			},
			Coverage: []int{0, 1, 2, 3},
			Steps:    4,
		},
		{Method: "jpamb.cases.Simple.noop:()V", Truncated: true},
	}
}

func TestWriteExploreJSON_ValidAgainstSchema(t *testing.T) {
	compiled := compile(t, ExploreSchema)

	var buf bytes.Buffer
	if err := WriteExploreJSON(&buf, sampleExplorations(), sampleMeta()); err != nil {
		t.Fatalf("WriteExploreJSON failed: %v", err)
	}
	validate(t, compiled, buf.Bytes())

	var got ExploreReport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Methods) != 2 || got.Methods[1].Branches == nil || got.Methods[1].Coverage == nil {
		t.Errorf("empty slices not normalized: %+v", got.Methods)
	}
}

func TestWriteExploreText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExploreText(&buf, sampleExplorations()); err != nil {
		t.Fatal(err)
	}

	output := stripANSI(buf.String())
	for _, want := range []string{
		"=== jpamb.cases.Simple.divide:(II)I ===",
		"4 step(s), 4 offset(s) covered",
		"UNSAT",
		"(not (= arg1 0))",
		"exploration truncated",
		"No branches recorded.",
		"2 method(s) explored, 2 branch(es) recorded",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("explore output missing %q", want)
		}
	}
	assertFits(t, buf.String())
}

func TestClassificationStyle(_ *testing.T) {
	s := DefaultStyles()
	for _, c := range taxonomy.AllClassifications {
		_ = s.ClassificationStyle(string(c)).Render("test")
	}
	_ = s.ClassificationStyle("bogus").Render("test")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"ϵϵϵϵϵϵ", 5, "ϵϵ..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
