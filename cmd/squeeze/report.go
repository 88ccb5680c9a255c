package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/squeeze/pkg/squeeze/ledger"
	"github.com/jamesainslie/squeeze/pkg/squeeze/manifest"
	"github.com/jamesainslie/squeeze/pkg/squeeze/output"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

var reportCmd = &cobra.Command{
	Use:   "report [path]",
	Short: "Show the bytes saved so far",
	Long: `Report reads the reduction ledgers under <path>/.optim and prints the files
reduced and bytes saved per media class. It never modifies anything and can
run while an optimization is in progress.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(_ *cobra.Command, args []string) error {
	root, err := resolveRoot(args, cfg)
	if err != nil {
		return err
	}
	base, err := manifestBase(root)
	if err != nil {
		return err
	}

	classes, err := reportClasses()
	if err != nil {
		return err
	}

	report, err := ledger.Build(manifest.NewReader(filepath.Join(base, cfg.Manifest.Dir)), classes)
	if err != nil {
		return err
	}
	return printReport(os.Stdout, output.LedgerReport(report))
}

// reportClasses covers every class unless --class narrows it, so ledgers of
// classes disabled since they were written still show up.
func reportClasses() ([]types.MediaClass, error) {
	if len(viper.GetStringSlice("classes")) == 0 {
		return types.AllClasses(), nil
	}
	return selectedClasses(cfg)
}
