package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/assay/internal/taxonomy"
)

// TextOptions controls text report rendering.
type TextOptions struct {
	// Verbose adds the classification reason under each assertion
	// table and every wrong input of each fault.
	Verbose bool
}

// WriteText writes class results as human-readable styled text to the
// writer. Output uses lipgloss for color and formatting when the
// output is a TTY; degrades gracefully for pipes and CI.
func WriteText(w io.Writer, classes []taxonomy.ClassResult, opts TextOptions) error {
	s := DefaultStyles()

	for i, c := range classes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeClass(w, c, s, opts)
	}

	methods, assertions, faults := 0, 0, 0
	for _, c := range classes {
		methods += len(c.Methods)
		for _, m := range c.Methods {
			assertions += len(m.Assertions)
			faults += len(m.Faults)
		}
	}
	fmt.Fprintln(w)
	writeSummary(w, taxonomy.Counts(classes), s)
	fmt.Fprintf(w, "\n%s\n",
		s.Header.Render(fmt.Sprintf(
			"%d method(s) analyzed, %d assertion(s), %d unguarded fault(s)",
			methods, assertions, faults)))
	return nil
}

func writeClass(w io.Writer, c taxonomy.ClassResult, s Styles, opts TextOptions) {
	fmt.Fprintln(w, s.Header.Render(fmt.Sprintf("=== %s ===", c.Class)))
	fmt.Fprintln(w, s.SubHeader.Render(fmt.Sprintf("    %.2f assertion(s) per method", c.AssertionsPerMethod)))

	for _, m := range c.Methods {
		fmt.Fprintln(w)
		fmt.Fprintln(w, s.Header.Render("  "+m.Target.Method))
		fmt.Fprintln(w, s.SubHeader.Render("    "+m.Target.ID))
		if m.Target.Location != "" {
			fmt.Fprintln(w, s.SubHeader.Render("    "+m.Target.Location))
		}
		if len(m.Assertions) == 0 {
			fmt.Fprintln(w, s.Muted.Render("    No assertions."))
		} else {
			writeAssertions(w, m.Assertions, s, opts)
		}
		for _, f := range m.Faults {
			writeFault(w, f, s, opts)
		}
	}
}

func writeAssertions(w io.Writer, assertions []taxonomy.Assertion, s Styles, opts TextOptions) {
	// Budget: 76 cols. Borders take 4, padding 6.
	// LINE=6, CLASSIFICATION=14, EXPRESSION=46.
	const maxExpr = 46
	rows := make([][]string, 0, len(assertions))
	for _, a := range assertions {
		rows = append(rows, []string{
			fmt.Sprintf("%d:%d", a.Span.StartLine, a.Span.StartColumn),
			string(a.Classification),
			truncate(a.Expression, maxExpr),
		})
	}

	t := table.New().
		Width(76).
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if col == 1 && row >= 0 && row < len(rows) {
				return s.ClassificationStyle(rows[row][1]).PaddingRight(1)
			}
			return s.TableCell
		}).
		Headers("LINE", "CLASSIFICATION", "EXPRESSION").
		Rows(rows...)
	fmt.Fprintln(w, t)

	if !opts.Verbose {
		return
	}
	for _, a := range assertions {
		if a.Reason == "" {
			continue
		}
		fmt.Fprintln(w, s.Muted.Render(truncate(fmt.Sprintf("    %s %s", a.ID, a.Reason), 80)))
	}
}

func writeFault(w io.Writer, f taxonomy.Fault, s Styles, opts TextOptions) {
	fmt.Fprintln(w, s.Fault.Render(truncate(fmt.Sprintf("    fault: %s at depth %d", f.Message, f.Depth), 80)))
	fmt.Fprintln(w, truncate("      input: "+f.Input, 80))
	if opts.Verbose {
		for _, wi := range f.WrongInputs {
			mark := " "
			if wi.Faulty {
				mark = "*"
			}
			fmt.Fprintln(w, s.Muted.Render(truncate(fmt.Sprintf("      %s %s = %s", mark, wi.Name, wi.Value), 80)))
		}
	}
	if f.Suggestion != "" {
		fmt.Fprintln(w, s.Suggestion.Render(truncate("      suggest: "+f.Suggestion, 80)))
	}
}

func writeSummary(w io.Writer, counts map[taxonomy.Classification]int, s Styles) {
	var parts []string
	for _, c := range taxonomy.AllClassifications {
		if n, ok := counts[c]; ok {
			parts = append(parts, s.ClassificationStyle(string(c)).Render(fmt.Sprintf("%s: %d", c, n)))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, s.Muted.Render("none"))
	}
	fmt.Fprintf(w, "%s %s\n", s.SummaryLabel.Render("Summary:"), strings.Join(parts, ", "))
}

// WriteExploreText writes exploration results as styled text.
func WriteExploreText(w io.Writer, methods []Exploration) error {
	s := DefaultStyles()

	branches := 0
	for i, m := range methods {
		if i > 0 {
			fmt.Fprintln(w)
		}
		branches += len(m.Branches)
		fmt.Fprintln(w, s.Header.Render(fmt.Sprintf("=== %s ===", m.Method)))
		fmt.Fprintln(w, s.SubHeader.Render(fmt.Sprintf("    %d step(s), %d offset(s) covered", m.Steps, len(m.Coverage))))
		if m.Truncated {
			fmt.Fprintln(w, s.Muted.Render("    step budget exhausted; exploration truncated"))
		}
		if m.Interesting != "" {
			fmt.Fprintln(w, s.Fault.Render(truncate("    stopped: "+m.Interesting, 80)))
		}
		if len(m.Branches) == 0 {
			fmt.Fprintln(w, s.Muted.Render("    No branches recorded."))
			continue
		}

		const maxCons = 60
		rows := make([][]string, 0, len(m.Branches))
		for _, b := range m.Branches {
			status := "UNSAT"
			if b.Sat {
				status = "SAT"
			}
			rows = append(rows, []string{status, truncate(b.Constraints, maxCons)})
		}
		t := table.New().
			Width(76).
			Border(lipgloss.NormalBorder()).
			BorderStyle(s.Border).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return s.TableHeader
				}
				if col == 0 && row >= 0 && row < len(rows) {
					return s.StatusStyle(rows[row][0]).PaddingRight(1)
				}
				return s.TableCell
			}).
			Headers("STATUS", "CONSTRAINTS").
			Rows(rows...)
		fmt.Fprintln(w, t)
	}

	fmt.Fprintf(w, "\n%s\n",
		s.Header.Render(fmt.Sprintf("%d method(s) explored, %d branch(es) recorded", len(methods), branches)))
	return nil
}

func truncate(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n-3]) + "..."
}
