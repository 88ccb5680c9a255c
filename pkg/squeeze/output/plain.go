package output

import (
	"bytes"
	"encoding/csv"
	"strings"
	"text/tabwriter"
)

// PlainFormatter writes an aligned table without colors, suitable for
// scripting and piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	g := r.grid()
	if len(g.headers) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range append(append([][]string{g.headers}, g.rows...), g.footer) {
		if _, err := tw.Write([]byte(strings.Join(row, "\t") + "\n")); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Run != nil {
		for _, warning := range r.Run.Warnings {
			w.WriteString("warning: " + warning + "\n")
		}
	}
	return nil
}

// CSVFormatter writes RFC 4180 comma-separated values.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Report) error {
	g := r.grid()
	if len(g.headers) == 0 {
		return nil
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(g.headers); err != nil {
		return err
	}
	for _, row := range g.rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

var (
	_ Formatter = (*PlainFormatter)(nil)
	_ Formatter = (*CSVFormatter)(nil)
)
