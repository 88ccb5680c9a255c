package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/squeeze/pkg/squeeze/config"
	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

var (
	cfgFile string
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "squeeze [path]",
		Short: "Incrementally optimize images, videos and PDFs",
		Long: `Squeeze shrinks media collections in place by handing files to external
optimizers (image_optim, ffmpeg, ghostscript).

Every optimized file is recorded by content in <path>/.optim, so repeat runs
only touch files that are new or changed since the last run.

Examples:
  squeeze                        # Optimize the default path
  squeeze ~/Photos               # Optimize a tree
  squeeze ~/Photos/cover.jpg     # Optimize a single file
  squeeze -n ~/Photos            # Show what would be processed
  squeeze --class image -o json  # Images only, JSON summary
  squeeze -o template --template '{{.Run.Total.Units}}'
                                 # Custom summary
  squeeze report ~/Photos        # Bytes saved so far
  squeeze watch ~/Inbox          # Re-run after uploads settle`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: setup,
		RunE:              runOptimize,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/squeeze/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "pretty", "output format ("+strings.Join(availableFormats(), ", ")+")")
	rootCmd.PersistentFlags().String("template", "", "Go template for -o template (receives .Run or .Ledger)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "only log errors to the console")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output, including optimizer stderr")
	rootCmd.PersistentFlags().StringSlice("class", nil, "restrict to media classes (image, video, doc)")

	flags := rootCmd.Flags()
	addOptimizeFlags(flags)

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("template", rootCmd.PersistentFlags().Lookup("template"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("classes", rootCmd.PersistentFlags().Lookup("class"))
}

// setup loads configuration and initializes logging before any command runs.
func setup(_ *cobra.Command, _ []string) error {
	v := viper.GetViper()
	if err := config.Configure(v, cfgFile); err != nil {
		return err
	}

	c, err := config.Decode(v)
	if err != nil {
		return err
	}
	cfg = c

	return initLogging(c, viper.GetBool("verbose"), viper.GetBool("quiet"))
}

// initLogging starts the file logger and picks the console level: -v wins
// over -q, and both override the configured console level.
func initLogging(c *config.Config, verbose, quiet bool) error {
	lc, err := c.Logging.Logging()
	if err != nil {
		return err
	}

	switch {
	case verbose:
		lc.ConsoleLevel = "debug"
	case quiet:
		lc.ConsoleLevel = "error"
	case lc.ConsoleLevel == "":
		lc.ConsoleLevel = "warn"
	}

	if err := logging.Init(lc); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logging.Close() }()
	return rootCmd.Execute()
}

// resolveRoot picks the target path: the argument, then default_path.
func resolveRoot(args []string, c *config.Config) (string, error) {
	path := c.DefaultPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		path = "."
	}
	return absPath(path)
}

// selectedClasses returns the classes named by --class, or every enabled class.
func selectedClasses(c *config.Config) ([]types.MediaClass, error) {
	names := viper.GetStringSlice("classes")
	if len(names) == 0 {
		classes := c.EnabledClasses()
		if len(classes) == 0 {
			return nil, fmt.Errorf("every media class is disabled in the configuration")
		}
		return classes, nil
	}

	var classes []types.MediaClass
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			class, err := types.ParseMediaClass(part)
			if err != nil {
				return nil, err
			}
			classes = append(classes, class)
		}
	}
	return orderClasses(classes), nil
}

// orderClasses returns classes in dispatch order without duplicates.
func orderClasses(classes []types.MediaClass) []types.MediaClass {
	out := make([]types.MediaClass, 0, len(classes))
	for _, class := range types.AllClasses() {
		if lo.Contains(classes, class) {
			out = append(out, class)
		}
	}
	return out
}
