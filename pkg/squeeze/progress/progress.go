// Package progress reports dispatch progress without slowing it down.
//
// The dispatcher calls Completed once per file. That call only bumps an
// atomic counter and pokes a one-slot channel; rendering happens on a
// separate goroutine started by Start and stopped by Finish.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
)

// DefaultInterval is how often non-interactive progress is logged.
const DefaultInterval = 10 * time.Second

// Options configures an Observer.
type Options struct {
	// Label prefixes every rendered line, typically the media class.
	Label string

	// Total is the number of units expected.
	Total int

	// Writer receives the rendered progress. Nil discards it.
	Writer io.Writer

	// Interactive renders a live bar instead of periodic lines.
	Interactive bool

	// Interval is the period between non-interactive lines.
	Interval time.Duration

	// Logger receives non-interactive progress lines. Nil uses the
	// "progress" component logger.
	Logger *logging.Logger
}

// Snapshot is a point-in-time view of progress.
type Snapshot struct {
	Done    int           `json:"done"`
	Total   int           `json:"total"`
	Elapsed time.Duration `json:"elapsed"`
	Rate    float64       `json:"rate"`
	ETA     time.Duration `json:"eta"`
	Percent float64       `json:"percent"`
}

// String renders the snapshot as "12/40 (30.0%) 1.2/s ETA 23s".
func (s Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d (%.1f%%)", s.Done, s.Total, s.Percent)
	if s.Rate > 0 {
		fmt.Fprintf(&b, " %.1f/s", s.Rate)
	}
	if eta := FormatETA(s.ETA); eta != "" && s.Done < s.Total {
		fmt.Fprintf(&b, " ETA %s", eta)
	}
	return b.String()
}

// Observer tracks completed units and renders them.
type Observer struct {
	opts Options
	log  *logging.Logger

	done   atomic.Int64
	notify chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup

	startOnce  sync.Once
	finishOnce sync.Once

	mu      sync.Mutex
	started time.Time
	bar     *progressbar.ProgressBar
}

// New returns an observer. It does not render until Start is called.
func New(opts Options) *Observer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Writer == nil {
		opts.Writer = io.Discard
	}
	log := opts.Logger
	if log == nil {
		log = logging.Get("progress")
	}
	return &Observer{
		opts:    opts,
		log:     log,
		notify:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		started: time.Now(),
	}
}

// Completed records one finished unit. It never blocks.
func (o *Observer) Completed() {
	o.done.Add(1)
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Start begins rendering.
func (o *Observer) Start() {
	o.startOnce.Do(func() {
		o.mu.Lock()
		o.started = time.Now()
		if o.opts.Interactive {
			o.bar = o.newBar()
		}
		o.mu.Unlock()

		o.wg.Add(1)
		go o.run()
	})
}

// Finish stops rendering and renders the final state.
func (o *Observer) Finish() {
	o.finishOnce.Do(func() {
		o.startOnce.Do(func() {})
		close(o.stop)
		o.wg.Wait()

		snap := o.Snapshot()
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.bar != nil {
			_ = o.bar.Set64(int64(snap.Done))
			_ = o.bar.Finish()
			fmt.Fprintln(o.opts.Writer)
			return
		}
		o.line(snap)
	})
}

// Snapshot returns current progress.
func (o *Observer) Snapshot() Snapshot {
	o.mu.Lock()
	started := o.started
	o.mu.Unlock()

	return compute(int(o.done.Load()), o.opts.Total, time.Since(started))
}

func compute(done, total int, elapsed time.Duration) Snapshot {
	s := Snapshot{Done: done, Total: total, Elapsed: elapsed}
	if total > 0 {
		s.Percent = float64(done) / float64(total) * 100
	}
	if secs := elapsed.Seconds(); secs > 0 && done > 0 {
		s.Rate = float64(done) / secs
		if remaining := total - done; remaining > 0 {
			s.ETA = time.Duration(float64(remaining) / s.Rate * float64(time.Second))
		}
	}
	return s
}

func (o *Observer) run() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stop:
			return
		case <-o.notify:
			if o.opts.Interactive {
				o.renderBar()
			}
		case <-ticker.C:
			if !o.opts.Interactive {
				o.mu.Lock()
				o.line(o.snapshotLocked())
				o.mu.Unlock()
			}
		}
	}
}

func (o *Observer) snapshotLocked() Snapshot {
	return compute(int(o.done.Load()), o.opts.Total, time.Since(o.started))
}

func (o *Observer) renderBar() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bar != nil {
		_ = o.bar.Set64(o.done.Load())
	}
}

// line writes one progress line. Must be called with o.mu held.
func (o *Observer) line(snap Snapshot) {
	label := o.opts.Label
	if label == "" {
		label = "progress"
	}
	fmt.Fprintf(o.opts.Writer, "%s: %s\n", label, snap)
	o.log.Info("progress", "label", label, "done", snap.Done, "total", snap.Total, "percent", fmt.Sprintf("%.1f", snap.Percent))
}

func (o *Observer) newBar() *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		int64(o.opts.Total),
		progressbar.OptionSetWriter(o.opts.Writer),
		progressbar.OptionSetDescription(o.opts.Label),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetWidth(30),
	)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// FormatETA renders d as "1h2m3s", dropping leading zero units.
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	d = d.Round(time.Second)
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || (hours == 0 && minutes == 0) {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, "")
}
