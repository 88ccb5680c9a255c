package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/squeeze/pkg/squeeze/config"
	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
	"github.com/jamesainslie/squeeze/pkg/squeeze/optimizer"
	"github.com/jamesainslie/squeeze/pkg/squeeze/output"
	"github.com/jamesainslie/squeeze/pkg/squeeze/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Optimize a tree, then re-run whenever it changes",
	Long: `Watch runs one optimization pass, then watches the tree and runs again
once changes have been quiet for watch.debounce (default 30s).

Files squeeze rewrites are already recorded in the manifest, so the runs its
own writes trigger find nothing to do. A failing optimizer invocation is
reported and the file is retried after the next change; any other failure
stops the watch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	addOptimizeFlags(watchCmd.Flags())
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, opts, root, err := prepareRun(cmd, args)
	if err != nil {
		return err
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watch(ctx, c, root, opts, os.Stdout)
}

// watch runs root once and then on every settled change until ctx ends.
func watch(ctx context.Context, c *config.Config, root string, opts optimizeOptions, w io.Writer) error {
	log := logging.Get("watcher")

	fw, err := watcher.New(c.Watch.Debounce)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Watch(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	log.Info("watching", "root", root, "directories", fw.Watched(), "debounce", c.Watch.Debounce)

	pass := func(ctx context.Context) error {
		summary, err := optimize(ctx, c, root, opts)
		if summary != nil {
			if perr := printReport(w, output.RunReport(summary)); perr != nil {
				return perr
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		var invErr *optimizer.InvocationError
		if errors.As(err, &invErr) {
			log.Error("run failed, waiting for further changes", "error", err)
			return nil
		}
		return err
	}

	if err := pass(ctx); err != nil {
		return err
	}
	return fw.Run(ctx, pass)
}
