package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"dqsurvey/internal/catalog"
	"dqsurvey/internal/shared/telemetry"
	"dqsurvey/internal/summary"
	"dqsurvey/internal/survey"
)

var (
	accent = lipgloss.Color("#2563EB")
	dim    = lipgloss.Color("#6B7280")
	good   = lipgloss.Color("#22C55E")

	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(accent)
	subsectionStyle = lipgloss.NewStyle().Bold(true)
	labelStyle      = lipgloss.NewStyle().Width(44)
	dimStyle        = lipgloss.NewStyle().Foreground(dim)
	scoreStyle      = lipgloss.NewStyle().Bold(true).Foreground(good)
	boxStyle        = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
)

func printOK(w io.Writer, msg string) {
	color.New(color.FgGreen).Fprint(w, "✓ ")
	fmt.Fprintln(w, msg)
}

// printAlert reports err in user terms. Missing prior sections also name the
// page to continue with.
func printAlert(w io.Writer, err error) {
	telemetry.Debug("cli.command_failed", map[string]any{"error": err})
	color.New(color.FgRed, color.Bold).Fprint(w, "✗ ")
	fmt.Fprintln(w, survey.UserMessage(err))

	var dme *survey.DependencyMissingError
	if errors.As(err, &dme) && dme.RedirectTo != "" {
		color.New(color.FgYellow).Fprintf(w, "  continue with: surveyctl show %s\n", dme.RedirectTo)
	}
}

func renderPath(path []string) string {
	return dimStyle.Render("Path: " + strings.Join(path, " → "))
}

func renderForm(cat *catalog.Catalog, form survey.Form, all bool) string {
	var b strings.Builder
	sec, _ := cat.Section(form.Section)
	b.WriteString(titleStyle.Render(sec.Title))
	b.WriteString("\n")

	current := ""
	for _, f := range cat.SectionFields(form.Section) {
		visible := form.Visible[f.ID]
		if !visible && !all {
			continue
		}
		if f.Subsection != current {
			current = f.Subsection
			b.WriteString("\n" + subsectionStyle.Render(current) + "\n")
		}
		label := f.Label
		if f.Required {
			label += " *"
		}
		line := fmt.Sprintf("  %s %s  %s", labelStyle.Render(label), summary.FormatValue(f, form.Values[f.ID]), dimStyle.Render("["+f.ID+"]"))
		if !visible {
			line = dimStyle.Render(line + " (hidden)")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func renderScores(cat *catalog.Catalog, view scoresView) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Section averages") + "\n")
	for _, id := range cat.SectionIDs() {
		sec, _ := cat.Section(id)
		b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render(sec.Title), view.Sections[id]))
	}

	groups := make([]string, 0, len(view.Groups))
	for g := range view.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	if len(groups) > 0 {
		b.WriteString("\n" + titleStyle.Render("Group averages") + "\n")
		for _, g := range groups {
			b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render(g), view.Groups[g]))
		}
	}

	b.WriteString("\n" + boxStyle.Render("Overall "+scoreStyle.Render(view.Overall)) + "\n")
	return b.String()
}

func renderSummary(s summary.Summary) string {
	var b strings.Builder
	for _, sec := range s.Sections {
		heading := fmt.Sprintf("%s  average %s", sec.Title, sec.Average)
		if sec.Skipped {
			heading = sec.Title + "  (skipped)"
		}
		b.WriteString(titleStyle.Render(heading) + "\n")
		if sec.Skipped {
			b.WriteString("\n")
			continue
		}
		current := ""
		for _, f := range sec.Fields {
			if f.Subsection != current {
				current = f.Subsection
				b.WriteString(subsectionStyle.Render(current) + "\n")
			}
			b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render(f.Label), f.Value))
		}
		b.WriteString("\n")
	}
	b.WriteString(boxStyle.Render("Overall "+scoreStyle.Render(s.Overall)) + "\n")
	return b.String()
}

// renderSummaryMarkdown renders the archive's per-section Markdown for the
// terminal.
func renderSummaryMarkdown(s summary.Summary) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	var doc strings.Builder
	for _, sec := range s.Sections {
		doc.Write(summary.SectionMarkdown(sec))
		doc.WriteString("\n")
	}
	doc.WriteString("**Overall:** " + s.Overall + "\n")
	out, err := r.Render(doc.String())
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
