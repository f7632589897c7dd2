package taxonomy

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateID_Deterministic(t *testing.T) {
	id1 := GenerateID("jpamb.cases.Simple", "div", 12, 8)
	id2 := GenerateID("jpamb.cases.Simple", "div", 12, 8)

	if id1 != id2 {
		t.Errorf("GenerateID not deterministic: %q != %q", id1, id2)
	}
}

func TestGenerateID_Format(t *testing.T) {
	id := GenerateID("jpamb.cases.Simple", "div", 12, 8)

	if len(id) != 11 { // "as-" + 8 hex chars
		t.Errorf("expected ID length 11, got %d: %q", len(id), id)
	}
	if id[:3] != "as-" {
		t.Errorf("expected ID to start with 'as-', got %q", id)
	}
}

func TestGenerateID_UniqueForDifferentInputs(t *testing.T) {
	id1 := GenerateID("jpamb.cases.Simple", "div", 12, 8)
	id2 := GenerateID("jpamb.cases.Simple", "div", 13, 8)
	id3 := GenerateID("jpamb.cases.Simple", "mul", 12, 8)

	if id1 == id2 {
		t.Errorf("different lines should produce different IDs")
	}
	if id1 == id3 {
		t.Errorf("different methods should produce different IDs")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Classification
		want     bool
	}{
		{Unclassified, Tautology, true},
		{Unclassified, Contingent, true},
		{Unclassified, Contradiction, true},
		{Unclassified, SideEffect, true},
		{Unclassified, Useful, false},
		{Unclassified, Useless, false},
		{Contingent, Useful, true},
		{Contingent, Useless, true},
		{Contingent, Tautology, false},
		{Tautology, Useful, false},
		{Contradiction, Useless, false},
		{SideEffect, Contingent, false},
		{Useful, Useless, false},
		{Useless, Unclassified, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssertionRefine_ForwardOnly(t *testing.T) {
	a := Assertion{Classification: Unclassified}

	if err := a.Refine(Contingent); err != nil {
		t.Fatalf("Refine(contingent): %v", err)
	}
	if err := a.Refine(Useful); err != nil {
		t.Fatalf("Refine(useful): %v", err)
	}
	err := a.Refine(Contingent)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Refine backward error = %v, want ErrInvalidTransition", err)
	}
	if a.Classification != Useful {
		t.Errorf("classification = %s, want useful", a.Classification)
	}
}

func TestAssertionRefine_ZeroValueIsUnclassified(t *testing.T) {
	var a Assertion
	if err := a.Refine(Tautology); err != nil {
		t.Fatalf("Refine on zero value: %v", err)
	}
	if err := a.Refine(Tautology); err != nil {
		t.Errorf("Refine to same value should be a no-op, got %v", err)
	}
}

func TestParseClassification(t *testing.T) {
	for _, c := range AllClassifications {
		got, err := ParseClassification(string(c))
		if err != nil || got != c {
			t.Errorf("ParseClassification(%q) = %q, %v", c, got, err)
		}
	}
	if _, err := ParseClassification("maybe"); err == nil {
		t.Error("expected error for unknown classification")
	}
}

func TestMethodTarget_QualifiedName(t *testing.T) {
	mt := MethodTarget{Class: "jpamb.cases.Simple", Method: "div"}
	if got := mt.QualifiedName(); got != "jpamb.cases.Simple.div" {
		t.Errorf("QualifiedName = %q", got)
	}
	if got := (MethodTarget{Method: "div"}).QualifiedName(); got != "div" {
		t.Errorf("QualifiedName without class = %q", got)
	}
}

func TestMetadata_MarshalJSON(t *testing.T) {
	m := Metadata{
		AssayVersion: "test",
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:     1500 * time.Millisecond,
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{`"duration_ms":1500`, `"timestamp":"2026-01-02T03:04:05Z"`, `"warnings":[]`} {
		if !strings.Contains(out, want) {
			t.Errorf("metadata JSON missing %s: %s", want, out)
		}
	}
}

func TestCounts(t *testing.T) {
	classes := []ClassResult{{
		Class: "C",
		Methods: []MethodResult{
			{Assertions: []Assertion{{Classification: Useful}, {Classification: Tautology}}},
			{Assertions: []Assertion{{Classification: Useful}}},
		},
	}}
	counts := Counts(classes)
	if counts[Useful] != 2 || counts[Tautology] != 1 {
		t.Errorf("Counts = %v", counts)
	}
}
