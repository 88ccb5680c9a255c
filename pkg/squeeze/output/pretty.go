package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// PrettyFormatter renders reports with colors and boxes for terminals.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	if r.Run == nil && r.Ledger == nil {
		w.WriteString(MutedStyle.Render("Nothing to report") + "\n")
		return nil
	}

	w.WriteString(f.header(r))
	w.WriteString("\n")
	w.WriteString(f.table(r.grid()))
	w.WriteString(f.footer(r))
	w.WriteString("\n")

	if r.Run != nil && len(r.Run.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.warnings(r.Run.Warnings))
	}
	return nil
}

func (f *PrettyFormatter) header(r *Report) string {
	var lines []string
	if r.Run != nil {
		lines = append(lines, field("Root:", r.Run.Root))
		info := []string{
			field("Run:", r.Run.RunID),
			field("Elapsed:", formatDuration(r.Run.Elapsed)),
		}
		lines = append(lines, strings.Join(info, "  "))
		if r.Run.DryRun {
			lines = append(lines, WarningStyle.Bold(true).Render("Dry run: nothing was modified"))
		}
	} else {
		lines = append(lines, TitleStyle.Render("Reduction ledger"))
		if r.Ledger.Dir != "" {
			lines = append(lines, field("Manifest:", r.Ledger.Dir))
		}
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) table(g grid) string {
	if len(g.rows) == 0 {
		return MutedStyle.Render("  No media classes processed") + "\n"
	}

	widths := make([]int, len(g.headers))
	for i, h := range g.headers {
		widths[i] = len(h)
	}
	for _, row := range append(g.rows, g.footer) {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var sb strings.Builder
	cells := make([]string, len(g.headers))
	for i, h := range g.headers {
		cells[i] = TableHeaderStyle.Render(pad(h, widths[i], g.right[i]))
	}
	sb.WriteString("  " + strings.Join(cells, "") + "\n")

	for _, row := range g.rows {
		for i, cell := range row {
			style := ValueStyle
			if g.headers[i] == "SAVED" {
				style = SizeStyle
			}
			cells[i] = style.PaddingRight(2).Render(pad(cell, widths[i], g.right[i]))
		}
		sb.WriteString("  " + strings.Join(cells, "") + "\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) footer(r *Report) string {
	var parts []string
	if r.Run != nil {
		total := r.Run.Total()
		parts = append(parts,
			field("Files:", fmt.Sprintf("%d", total.Units)),
			LabelStyle.Render("Saved:")+" "+savedStyle(total.BytesSaved).Render(types.FormatSize(total.BytesSaved)),
		)
		if total.BytesBefore > 0 {
			parts = append(parts, MutedStyle.Render(fmt.Sprintf("%.1f%% smaller", total.Ratio()*100)))
		}
	} else {
		parts = append(parts,
			field("Files:", fmt.Sprintf("%d", r.Ledger.Total.Files)),
			LabelStyle.Render("Saved:")+" "+SizeStyle.Render(size(r.Ledger.Total.BytesSaved)),
		)
	}
	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))
	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) warnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func field(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}

func savedStyle(saved int64) lipgloss.Style {
	if saved < 0 {
		return ErrorStyle
	}
	return SuccessStyle
}

func pad(s string, width int, right bool) string {
	n := width - lipgloss.Width(s)
	if n <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
