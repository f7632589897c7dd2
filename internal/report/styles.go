package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/unbound-force/assay/internal/taxonomy"
)

// Styles defines the visual theme for terminal report output.
// Lipgloss automatically degrades to no-color when output is not a TTY.
type Styles struct {
	// Header is used for section headers (e.g. "=== Class ===").
	Header lipgloss.Style

	// SubHeader is used for secondary information lines.
	SubHeader lipgloss.Style

	// Useful through Unclassified color-code assertion verdicts.
	Useful        lipgloss.Style
	Useless       lipgloss.Style
	Tautology     lipgloss.Style
	Contradiction lipgloss.Style
	Contingent    lipgloss.Style
	SideEffect    lipgloss.Style
	Unclassified  lipgloss.Style

	// TableHeader styles the header row of tables.
	TableHeader lipgloss.Style

	// TableCell styles regular table cells.
	TableCell lipgloss.Style

	// SummaryLabel styles summary line labels.
	SummaryLabel lipgloss.Style

	// Fault styles unguarded fault lines.
	Fault lipgloss.Style

	// Suggestion styles suggested assert statements.
	Suggestion lipgloss.Style

	// Sat and Unsat style branch record status.
	Sat   lipgloss.Style
	Unsat lipgloss.Style

	// Border is used for table borders.
	Border lipgloss.Style

	// Muted is used for de-emphasized text.
	Muted lipgloss.Style
}

// DefaultStyles returns the default color scheme for terminal reports.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		SubHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		Useful:        lipgloss.NewStyle().Foreground(lipgloss.Color("40")),
		Useless:       lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		Tautology:     lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		Contradiction: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Contingent:    lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		SideEffect:    lipgloss.NewStyle().Foreground(lipgloss.Color("201")),
		Unclassified:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),

		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		TableCell:   lipgloss.NewStyle().PaddingRight(1),

		SummaryLabel: lipgloss.NewStyle().Bold(true).Width(16),

		Fault:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Suggestion: lipgloss.NewStyle().Foreground(lipgloss.Color("40")),

		Sat:   lipgloss.NewStyle().Foreground(lipgloss.Color("40")),
		Unsat: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),

		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// ClassificationStyle returns the style for a classification label.
func (s Styles) ClassificationStyle(c string) lipgloss.Style {
	switch taxonomy.Classification(c) {
	case taxonomy.Useful:
		return s.Useful
	case taxonomy.Useless:
		return s.Useless
	case taxonomy.Tautology:
		return s.Tautology
	case taxonomy.Contradiction:
		return s.Contradiction
	case taxonomy.Contingent:
		return s.Contingent
	case taxonomy.SideEffect:
		return s.SideEffect
	case taxonomy.Unclassified:
		return s.Unclassified
	default:
		return s.Muted
	}
}

// StatusStyle returns the style for a branch record status.
func (s Styles) StatusStyle(status string) lipgloss.Style {
	if status == "SAT" {
		return s.Sat
	}
	return s.Unsat
}
