package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/healthrag-go/internal/pipeline"
	"github.com/raphaelgruber/healthrag-go/internal/safety"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Heading lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Heading: lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Warning: lipgloss.Color("#FFAF00"), // amber
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) headingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Heading).Bold(true)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) boxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Hint).
		Padding(0, 1).
		Width(80)
}

// renderTrace writes a human-readable summary of a pipeline run.
func (t Theme) renderTrace(w io.Writer, trace *pipeline.Trace) {
	if trace.Success {
		fmt.Fprintln(w, t.successStyle().Render("✓ Report generated"))
	} else {
		fmt.Fprintln(w, t.errorStyle().Render("✗ Run failed"))
	}
	fmt.Fprintln(w, t.hintStyle().Render("trace "+trace.TraceID))

	if r := trace.Report; r != nil {
		sections := []struct{ title, body string }{
			{"Overview", r.ReportSections.Overview},
			{"Symptom analysis", r.ReportSections.SymptomAnalysis},
			{"Clinical insights", r.ReportSections.ClinicalInsights},
			{"Risk summary", r.ReportSections.RiskSummary},
			{"Recommendations", r.ReportSections.Recommendations},
		}
		var b strings.Builder
		for i, s := range sections {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(t.headingStyle().Render(s.title))
			b.WriteString("\n")
			b.WriteString(s.body)
		}
		fmt.Fprintln(w, t.boxStyle().Render(b.String()))
	}

	if trace.RAG.Enabled {
		fmt.Fprintf(w, "Retrieval: %d passage(s) for %q\n", len(trace.RAG.Chunks), trace.RAG.Query)
	}
	if a := trace.Safety; a != nil && len(a.Actions) > 0 {
		fmt.Fprintln(w, t.warningStyle().Render("Safety: "+strings.Join(a.Actions, ", ")))
	}
	for _, e := range trace.Errors {
		fmt.Fprintln(w, t.errorStyle().Render(fmt.Sprintf("%s [%s]: %s", e.Stage, e.ErrorType, e.Message)))
	}
}

// renderGuard writes a guard result.
func (t Theme) renderGuard(w io.Writer, res safety.Result) {
	if res.Allowed {
		fmt.Fprintln(w, t.successStyle().Render("✓ Allowed")+t.hintStyle().Render(" severity "+string(res.Severity)))
	} else {
		fmt.Fprintln(w, t.errorStyle().Render("✗ Blocked")+t.hintStyle().Render(" severity "+string(res.Severity)))
	}
	if len(res.Actions) > 0 {
		fmt.Fprintln(w, t.warningStyle().Render("Actions: "+strings.Join(res.Actions, ", ")))
	}
	for _, r := range res.Reasons {
		fmt.Fprintf(w, "  - %s: %s\n", r.Type, r.Detail)
	}
	fmt.Fprintln(w, res.MaskedText)
}
