package output

import (
	"bytes"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter renders a boxed table with go-pretty.
type TableFormatter struct {
	// Style defaults to table.StyleRounded.
	Style *table.Style
}

// Format writes the formatted output to the buffer.
func (f *TableFormatter) Format(w *bytes.Buffer, r *Report) error {
	g := r.grid()
	if len(g.headers) == 0 {
		return nil
	}

	tw := table.NewWriter()
	if f.Style != nil {
		tw.SetStyle(*f.Style)
	} else {
		tw.SetStyle(table.StyleRounded)
	}

	tw.AppendHeader(toRow(g.headers))
	for _, row := range g.rows {
		tw.AppendRow(toRow(row))
	}
	if len(g.footer) > 0 {
		tw.AppendFooter(toRow(g.footer))
	}

	configs := make([]table.ColumnConfig, len(g.headers))
	for i := range g.headers {
		align := text.AlignLeft
		if g.right[i] {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignFooter: align,
			AlignHeader: text.AlignLeft,
		}
	}
	tw.SetColumnConfigs(configs)

	w.WriteString(tw.Render())
	w.WriteString("\n")

	if r.Run != nil {
		for _, warning := range r.Run.Warnings {
			w.WriteString("warning: " + warning + "\n")
		}
	}
	return nil
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func init() {
	Register("table", func() Formatter {
		return &TableFormatter{}
	})
}

var _ Formatter = (*TableFormatter)(nil)
