package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jamesainslie/squeeze/pkg/squeeze/config"
	"github.com/jamesainslie/squeeze/pkg/squeeze/deps"
	"github.com/jamesainslie/squeeze/pkg/squeeze/dispatch"
	"github.com/jamesainslie/squeeze/pkg/squeeze/hashcache"
	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
	"github.com/jamesainslie/squeeze/pkg/squeeze/manifest"
	"github.com/jamesainslie/squeeze/pkg/squeeze/optimizer"
	"github.com/jamesainslie/squeeze/pkg/squeeze/output"
	"github.com/jamesainslie/squeeze/pkg/squeeze/progress"
	"github.com/jamesainslie/squeeze/pkg/squeeze/runner"
	"github.com/jamesainslie/squeeze/pkg/squeeze/scanner"
	"github.com/jamesainslie/squeeze/pkg/squeeze/tuner"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// addOptimizeFlags registers the flags shared by the root and watch commands.
func addOptimizeFlags(flags *pflag.FlagSet) {
	flags.BoolP("dry-run", "n", false, "scan and diff only, invoke no optimizer")
	flags.BoolP("parallel", "p", false, "run media classes concurrently")
	flags.Bool("no-manifest", false, "ignore and do not write the manifest (reprocesses everything)")
	flags.Bool("no-cache", false, "bypass the content hash cache")
	flags.StringSliceP("exclude", "e", nil, "exclude patterns (can be specified multiple times)")
	flags.IntP("workers", "w", 0, "override hashing worker count (0=auto)")
	flags.Duration("timeout", 0, "per-invocation optimizer timeout (e.g. 30m, 0 for config value)")
	flags.Int("batch-size", 0, "images per optimizer invocation (0 for config value)")
}

// bindOptimizeFlags binds the flags of cmd to their viper keys. Bindings are
// made when a command runs so root and watch can share key names.
func bindOptimizeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	_ = viper.BindPFlag("dry_run", flags.Lookup("dry-run"))
	_ = viper.BindPFlag("no_manifest", flags.Lookup("no-manifest"))
	_ = viper.BindPFlag("no_cache", flags.Lookup("no-cache"))

	if flags.Changed("parallel") {
		viper.Set("parallel_classes", true)
	}
	if flags.Changed("exclude") {
		exclude, _ := flags.GetStringSlice("exclude")
		viper.Set("exclude", append(viper.GetStringSlice("exclude"), exclude...))
	}
	if flags.Changed("workers") {
		workers, _ := flags.GetInt("workers")
		viper.Set("workers.hash", workers)
	}
	if flags.Changed("timeout") {
		timeout, _ := flags.GetDuration("timeout")
		viper.Set("timeout", timeout)
	}
	if flags.Changed("batch-size") {
		size, _ := flags.GetInt("batch-size")
		viper.Set("batch_size", size)
	}
}

// optimizeOptions are the per-invocation switches that do not live in the
// config file.
type optimizeOptions struct {
	Classes    []types.MediaClass
	DryRun     bool
	NoManifest bool
	NoCache    bool

	// Progress receives progress output. Nil disables it.
	Progress    io.Writer
	Interactive bool

	// Verbose receives optimizer stderr as it is produced.
	Verbose io.Writer
}

// runOptimize is the root command handler.
func runOptimize(cmd *cobra.Command, args []string) error {
	c, opts, root, err := prepareRun(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := optimize(ctx, c, root, opts)
	if summary != nil {
		if err := printReport(os.Stdout, output.RunReport(summary)); err != nil {
			return err
		}
	}
	return runErr
}

// prepareRun reloads configuration with command flags applied and builds
// the run options.
func prepareRun(cmd *cobra.Command, args []string) (*config.Config, optimizeOptions, string, error) {
	bindOptimizeFlags(cmd)

	c, err := config.Decode(viper.GetViper())
	if err != nil {
		return nil, optimizeOptions{}, "", err
	}

	root, err := resolveRoot(args, c)
	if err != nil {
		return nil, optimizeOptions{}, "", err
	}

	classes, err := selectedClasses(c)
	if err != nil {
		return nil, optimizeOptions{}, "", err
	}

	opts := optimizeOptions{
		Classes:     classes,
		DryRun:      viper.GetBool("dry_run"),
		NoManifest:  viper.GetBool("no_manifest"),
		NoCache:     viper.GetBool("no_cache"),
		Progress:    os.Stderr,
		Interactive: progress.IsTerminal(os.Stderr),
	}
	if viper.GetBool("quiet") {
		opts.Progress = nil
	}
	if viper.GetBool("verbose") {
		opts.Verbose = os.Stderr
	}

	return c, opts, root, nil
}

// optimize performs one run over root and returns its summary. The summary
// is non-nil whenever the run started, including when it failed.
func optimize(ctx context.Context, c *config.Config, root string, opts optimizeOptions) (*runner.Summary, error) {
	log := logging.Get("squeeze")

	base, err := manifestBase(root)
	if err != nil {
		return nil, err
	}

	if c.CheckDeps && !opts.DryRun {
		if err := deps.Require(deps.ToolsFor(opts.Classes, c)); err != nil {
			return nil, err
		}
	}

	store, closeStore, err := openStore(c, base, opts)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	cache, closeCache := openCache(c, opts, log)
	defer closeCache()

	specs := make(map[types.MediaClass]types.ClassSpec, len(opts.Classes))
	for _, class := range opts.Classes {
		spec, err := c.Spec(class)
		if err != nil {
			return nil, err
		}
		specs[class] = spec
	}

	tuned := tuner.CalculateWithOverrides(detectResources(), c.Workers.Hash, c.Workers.Diff)

	r := &runner.Runner{
		Options: runner.Options{
			Root:        root,
			Classes:     opts.Classes,
			Specs:       specs,
			Exclude:     c.Exclude,
			WalkWorkers: tuned.WalkWorkers,
			HashWorkers: tuned.HashWorkers,
			BufferSize:  tuned.HashBufferSize,
			DiffWorkers: tuned.DiffWorkers,
			Cache:       cache,
			Parallel:    c.ParallelClasses,
			DryRun:      opts.DryRun,
			Progress:    opts.Progress,
			Interactive: opts.Interactive,
		},
		Store:      store,
		Dispatcher: newDispatcher(c, store, cache, tuned.HashBufferSize, opts.Verbose),
		Logger:     logging.Get("runner"),
	}

	return r.Run(ctx)
}

// manifestBase returns the directory that holds the manifest directory for
// root. A single-file root keeps its manifest beside the file.
func manifestBase(root string) (string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return "", &scanner.RootError{Root: root, Err: err}
	}
	if info.IsDir() {
		return root, nil
	}
	return filepath.Dir(root), nil
}

// runStore is the manifest surface used by a run.
type runStore interface {
	runner.Loader
	dispatch.Recorder
}

// openStore opens the manifest for a run. Dry runs read without locking or
// creating anything on disk.
func openStore(c *config.Config, base string, opts optimizeOptions) (runStore, func(), error) {
	noop := func() {}

	if opts.NoManifest || !c.Manifest.Enabled {
		return manifest.Nop(), noop, nil
	}

	if opts.DryRun {
		return readOnly{manifest.NewReader(filepath.Join(base, c.Manifest.Dir))}, noop, nil
	}

	fileStore, err := manifest.Open(base, c.Manifest.Dir, manifest.Options{Fsync: c.Manifest.Fsync})
	if err != nil {
		if errors.Is(err, manifest.ErrLocked) {
			return nil, noop, fmt.Errorf("%s: another squeeze run is using this tree: %w", base, err)
		}
		return nil, noop, err
	}
	return fileStore, func() {
		if err := fileStore.Close(); err != nil {
			logging.Get("manifest").Warn("failed to close manifest", "dir", fileStore.Dir(), "error", err)
		}
	}, nil
}

// readOnly adapts a manifest reader for dry runs. Appends are rejected
// because a dry run never dispatches.
type readOnly struct {
	*manifest.Reader
}

var errReadOnly = errors.New("manifest opened read-only")

func (readOnly) Append(types.MediaClass, types.Identity) error { return errReadOnly }

func (readOnly) AppendReduction(types.MediaClass, types.ReductionRecord) error {
	return errReadOnly
}

// openCache opens the hash cache. Failure to open is logged and the run
// continues without a cache.
func openCache(c *config.Config, opts optimizeOptions, log *logging.Logger) (scanner.HashCache, func()) {
	noop := func() {}
	if !c.Cache.Enabled || opts.NoCache {
		return nil, noop
	}

	path, err := c.HashCachePath()
	if err != nil {
		log.Warn("hash cache disabled", "error", err)
		return nil, noop
	}

	hc, err := hashcache.Open(path)
	if err != nil {
		log.Warn("hash cache disabled", "path", path, "error", err)
		return nil, noop
	}
	return hc, func() {
		if err := hc.Close(); err != nil {
			log.Warn("failed to close hash cache", "path", path, "error", err)
		}
	}
}

// newDispatcher wires the external optimizers from configuration.
func newDispatcher(c *config.Config, rec dispatch.Recorder, cache scanner.HashCache, bufferSize int, verbose io.Writer) *dispatch.Dispatcher {
	exec := &optimizer.Exec{
		Timeout: c.Timeout,
		Verbose: verbose,
		Logger:  logging.Get("optimizer"),
	}

	return &dispatch.Dispatcher{
		Store: rec,
		Images: optimizer.NewImageOptim(exec, optimizer.ImageOptions{
			Command:       c.Image.Command,
			Lossy:         c.Image.Lossy,
			Quality:       c.Image.Quality,
			StripMetadata: c.Image.StripMetadata,
			ExtraArgs:     c.Image.ExtraArgs,
		}),
		Videos: optimizer.NewFFmpeg(exec, optimizer.VideoOptions{
			Command:   c.Video.Command,
			Codec:     c.Video.Codec,
			CRF:       c.Video.CRF,
			Preset:    c.Video.Preset,
			MaxHeight: c.Video.MaxHeight,
			ExtraArgs: c.Video.ExtraArgs,
		}),
		Documents: optimizer.NewGhostscript(exec, optimizer.DocumentOptions{
			Command:       c.Document.Command,
			Resolution:    c.Document.Resolution,
			Compatibility: c.Document.Compatibility,
			ExtraArgs:     c.Document.ExtraArgs,
		}),
		Hasher:    scanner.NewHasher(cache, bufferSize),
		BatchSize: c.BatchSize,
		Logger:    logging.Get("dispatch"),
	}
}

func detectResources() tuner.SystemResources {
	resources, err := tuner.Detect()
	if err != nil {
		logging.Get("tuner").Debug("resource detection incomplete", "error", err)
	}
	return resources
}

// printReport renders r in the format selected by --output.
func printReport(w io.Writer, r *output.Report) error {
	format := viper.GetString("output")
	var formatter output.Formatter
	if tmpl := viper.GetString("template"); format == "template" && tmpl != "" {
		formatter = output.NewTemplateFormatter(tmpl)
	} else {
		f, err := output.Get(format)
		if err != nil {
			return err
		}
		formatter = f
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func availableFormats() []string {
	return output.Available()
}

// absPath expands ~ and makes path absolute.
func absPath(path string) (string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %w", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return abs, nil
}
