// Package runner coordinates one optimization run: for each media class it
// scans the root, loads the manifest, detects pending work and dispatches
// it, collecting a summary of everything that happened.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/squeeze/pkg/squeeze/diff"
	"github.com/jamesainslie/squeeze/pkg/squeeze/dispatch"
	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
	"github.com/jamesainslie/squeeze/pkg/squeeze/manifest"
	"github.com/jamesainslie/squeeze/pkg/squeeze/progress"
	"github.com/jamesainslie/squeeze/pkg/squeeze/scanner"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// Dispatcher processes the pending work of one class.
type Dispatcher interface {
	Dispatch(ctx context.Context, class types.MediaClass, items []types.WorkItem, sink dispatch.Sink) (dispatch.Result, error)
}

// Loader loads the known-good identities of a class.
type Loader interface {
	Load(class types.MediaClass) (*manifest.Manifest, error)
}

// Options configures a run.
type Options struct {
	// Root is the directory tree, or single file, to optimize.
	Root string

	// Classes are processed in this order. Empty means every class.
	Classes []types.MediaClass

	// Specs overrides the selection rules per class.
	Specs map[types.MediaClass]types.ClassSpec

	Exclude     []string
	WalkWorkers int
	HashWorkers int
	BufferSize  int
	DiffWorkers int

	// Cache is shared by every class scan. Nil disables it.
	Cache scanner.HashCache

	// Parallel runs classes concurrently.
	Parallel bool

	// DryRun stops after change detection.
	DryRun bool

	// Progress receives progress output. Nil disables it.
	Progress io.Writer

	// Interactive renders progress bars instead of periodic lines.
	Interactive bool

	// ProgressInterval is the period of non-interactive progress lines.
	ProgressInterval time.Duration
}

// Runner executes runs.
type Runner struct {
	Options    Options
	Store      Loader
	Dispatcher Dispatcher
	Logger     *logging.Logger
}

// ClassSummary describes the run of a single class.
type ClassSummary struct {
	Class   types.MediaClass `json:"class" yaml:"class"`
	Scanned int              `json:"scanned" yaml:"scanned"`
	Skipped int              `json:"skipped" yaml:"skipped"`
	Known   int              `json:"known" yaml:"known"`
	Pending int              `json:"pending" yaml:"pending"`

	// CacheHits counts hashes served by the hash cache.
	CacheHits int64 `json:"cache_hits" yaml:"cache_hits"`

	Result  dispatch.Result `json:"result" yaml:"result"`
	Elapsed time.Duration   `json:"elapsed" yaml:"elapsed"`

	// Errors lists the entries the scan could not read.
	Errors []types.ScanError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Summary describes a whole run.
type Summary struct {
	RunID     string         `json:"run_id" yaml:"run_id"`
	Root      string         `json:"root" yaml:"root"`
	StartedAt time.Time      `json:"started_at" yaml:"started_at"`
	Elapsed   time.Duration  `json:"elapsed" yaml:"elapsed"`
	DryRun    bool           `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Classes   []ClassSummary `json:"classes" yaml:"classes"`
	Warnings  []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Total merges the results of every class.
func (s *Summary) Total() dispatch.Result {
	var total dispatch.Result
	for _, c := range s.Classes {
		total.Merge(c.Result)
	}
	return total
}

// Pending returns the number of files that were due for processing.
func (s *Summary) Pending() int {
	n := 0
	for _, c := range s.Classes {
		n += c.Pending
	}
	return n
}

// Run performs one optimization pass. The returned summary is non-nil
// even on error and covers the work done before the failure.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if r.Store == nil || r.Dispatcher == nil {
		return nil, errors.New("runner requires a store and a dispatcher")
	}
	log := r.logger()

	classes := r.Options.Classes
	if len(classes) == 0 {
		classes = types.AllClasses()
	}

	summary := &Summary{
		RunID:     uuid.NewString(),
		Root:      r.Options.Root,
		StartedAt: time.Now(),
		DryRun:    r.Options.DryRun,
		Classes:   make([]ClassSummary, len(classes)),
	}
	for i, class := range classes {
		summary.Classes[i].Class = class
	}

	var warnMu sync.Mutex
	warn := func(msg string) {
		warnMu.Lock()
		defer warnMu.Unlock()
		summary.Warnings = append(summary.Warnings, msg)
		log.Warn(msg)
	}
	if store, ok := r.Store.(manifest.Store); ok && manifest.IsNop(store) {
		warn("manifest disabled: every file is reprocessed on every run, which repeatedly degrades lossy formats")
	}

	log.Info("run started", "run_id", summary.RunID, "root", r.Options.Root, "classes", len(classes), "parallel", r.Options.Parallel)

	var err error
	if r.Options.Parallel && len(classes) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i, class := range classes {
			g.Go(func() error {
				return r.runClass(gctx, class, &summary.Classes[i], warn)
			})
		}
		err = g.Wait()
	} else {
		for i, class := range classes {
			if err = r.runClass(ctx, class, &summary.Classes[i], warn); err != nil {
				break
			}
		}
	}

	summary.Elapsed = time.Since(summary.StartedAt)
	total := summary.Total()

	if err != nil {
		log.Error("run failed", "run_id", summary.RunID, "units", total.Units, "err", err)
		return summary, err
	}

	log.Info("run finished",
		"run_id", summary.RunID,
		"units", total.Units,
		"saved", types.FormatSize(total.BytesSaved),
		"elapsed", summary.Elapsed.Round(time.Millisecond),
	)
	return summary, nil
}

func (r *Runner) runClass(ctx context.Context, class types.MediaClass, cs *ClassSummary, warn func(string)) error {
	start := time.Now()
	defer func() { cs.Elapsed = time.Since(start) }()

	log := r.logger().With("class", class)

	sc, err := scanner.New(scanner.Options{
		Root:        r.Options.Root,
		Spec:        r.spec(class),
		Exclude:     r.Options.Exclude,
		WalkWorkers: r.Options.WalkWorkers,
		HashWorkers: r.Options.HashWorkers,
		BufferSize:  r.Options.BufferSize,
		Cache:       r.Options.Cache,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", class, err)
	}

	scan, err := sc.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", class, err)
	}
	cs.Scanned = len(scan.Fingerprints)
	cs.Skipped = len(scan.Skipped)
	cs.CacheHits = scan.CacheHits
	cs.Errors = scan.Skipped
	if cs.Skipped > 0 {
		warn(fmt.Sprintf("%s: %d entries could not be read and were skipped", class, cs.Skipped))
	}

	known, err := r.Store.Load(class)
	if err != nil {
		return err
	}
	if known.Invalid > 0 {
		warn(fmt.Sprintf("%s: ignored %d malformed manifest lines", class, known.Invalid))
	}

	items, stats, err := diff.DetectWithStats(ctx, known, scan.Fingerprints, diff.Options{Workers: r.Options.DiffWorkers})
	if err != nil {
		return fmt.Errorf("%s: %w", class, err)
	}
	cs.Known = stats.Known
	cs.Pending = stats.Pending

	log.Info("change detection finished",
		"scanned", stats.Scanned,
		"known", stats.Known,
		"pending", stats.Pending,
		"manifest", known.Len(),
	)

	if r.Options.DryRun || len(items) == 0 {
		return nil
	}

	obs := progress.New(progress.Options{
		Label:       class.String(),
		Total:       len(items),
		Writer:      r.Options.Progress,
		Interactive: r.Options.Interactive,
		Interval:    r.Options.ProgressInterval,
	})
	obs.Start()
	res, err := r.Dispatcher.Dispatch(ctx, class, items, obs)
	obs.Finish()

	res.Class = class
	cs.Result = res
	if err != nil {
		return err
	}

	log.Info("class finished",
		"units", res.Units,
		"modified", res.Modified,
		"grown", res.Grown,
		"saved", types.FormatSize(res.BytesSaved),
	)
	return nil
}

func (r *Runner) spec(class types.MediaClass) types.ClassSpec {
	if s, ok := r.Options.Specs[class]; ok {
		s.Class = class
		return s
	}
	return types.DefaultClassSpec(class)
}

func (r *Runner) logger() *logging.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.Get("runner")
}
