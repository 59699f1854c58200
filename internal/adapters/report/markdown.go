// Package report renders completed audit sessions into a markdown document
// and delivers it by mail.
package report

import (
	"fmt"
	"strings"

	"github.com/klinikhygiene/begehung/internal/app"
	"github.com/klinikhygiene/begehung/internal/domain"
)

// MarkdownRenderer implements app.ReportRenderer with a plain markdown
// document: summary header, per-category item tables, and a deviation
// section listing failed items with their observations.
type MarkdownRenderer struct{}

// NewMarkdownRenderer constructs a markdown renderer.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// Render produces the report document for a session.
func (r *MarkdownRenderer) Render(session domain.Session) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# Hygiene audit – %s\n\n", session.Department.Name)
	if !session.Completed() {
		b.WriteString("> Preliminary report: this audit has not been completed yet.\n\n")
	}
	fmt.Fprintf(&b, "- Department: %s\n", session.Department.Name)
	fmt.Fprintf(&b, "- Location: %s\n", session.Location)
	fmt.Fprintf(&b, "- Reviewer: %s\n", session.Reviewer)
	fmt.Fprintf(&b, "- Date: %s\n", session.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Result: %s (%d%%)\n", colorLabel(session.Result.Color), session.Result.Percentage)
	fmt.Fprintf(&b, "- Critical findings: %s\n\n", session.Result.Description)

	for _, group := range app.GroupItems(session.Items) {
		fmt.Fprintf(&b, "## %s\n\n", group.Category)
		b.WriteString("| Question | Status | Comment |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, item := range group.Items {
			fmt.Fprintf(&b, "| %s | %s | %s |\n",
				cell(item.Question.Text), statusLabel(item.Status), cell(item.Comment))
		}
		b.WriteString("\n")
	}

	deviations := collectDeviations(session.Items)
	if len(deviations) > 0 {
		b.WriteString("## Deviations\n\n")
		for _, line := range deviations {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return []byte(b.String()), nil
}

// collectDeviations lists failed items and failed observations.
func collectDeviations(items []domain.ChecklistItem) []string {
	out := make([]string, 0)
	for _, item := range items {
		if item.Status == domain.StatusFailed {
			line := fmt.Sprintf("- **%s**", item.Question.Text)
			if item.Question.Critical {
				line += " (critical)"
			}
			if item.Comment != "" {
				line += ": " + item.Comment
			}
			out = append(out, line)
		}
		for _, o := range item.Observations {
			if o.Status != domain.StatusFailed {
				continue
			}
			line := fmt.Sprintf("  - %s – %s", o.Role, item.Question.Text)
			if o.Comment != "" {
				line += ": " + o.Comment
			}
			out = append(out, line)
		}
	}
	return out
}

// cell escapes markdown table separators inside free text.
func cell(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.ReplaceAll(text, "|", "\\|")
}

// statusLabel maps a status to its report label.
func statusLabel(status domain.Status) string {
	switch status {
	case domain.StatusApproved:
		return "approved"
	case domain.StatusFailed:
		return "failed"
	case domain.StatusPartial:
		return "partially approved"
	case domain.StatusNotReviewed:
		return "not reviewed"
	default:
		return string(status)
	}
}

// colorLabel maps a result color to its report label.
func colorLabel(color domain.ResultColor) string {
	switch color {
	case domain.ColorGreen:
		return "green"
	case domain.ColorYellow:
		return "yellow"
	case domain.ColorRed:
		return "red"
	default:
		return string(color)
	}
}
