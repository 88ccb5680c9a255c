package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/squeeze/pkg/squeeze/deps"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the external optimizers are installed",
	Long: `Check looks up the optimizer command of every enabled media class on PATH
and exits non-zero if any is missing.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(_ *cobra.Command, _ []string) error {
	classes, err := selectedClasses(cfg)
	if err != nil {
		return err
	}
	tools := deps.ToolsFor(classes, cfg)
	writeStatus(os.Stdout, deps.Check(tools))
	return deps.Require(tools)
}

// writeStatus renders tool availability as a table.
func writeStatus(w io.Writer, statuses []deps.Status) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"CLASS", "COMMAND", "STATUS", "PATH / INSTALL"})
	for _, s := range statuses {
		status, where := "ok", s.Path
		if !s.Found {
			status, where = "missing", s.Tool.Hint
		}
		tw.AppendRow(table.Row{s.Tool.Class, s.Tool.Command, status, where})
	}
	fmt.Fprintln(w, tw.Render())
}
