// Package output renders run summaries and ledger reports in several
// formats (pretty, plain, table, csv, json, yaml).
//
// Formatters are registered by name and selected at runtime:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, output.RunReport(summary)); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/squeeze/pkg/squeeze/ledger"
	"github.com/jamesainslie/squeeze/pkg/squeeze/runner"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// Report is what a formatter renders: either a run summary or a ledger
// report.
type Report struct {
	Run    *runner.Summary
	Ledger *ledger.Report
}

// RunReport wraps a run summary.
func RunReport(s *runner.Summary) *Report {
	return &Report{Run: s}
}

// LedgerReport wraps a ledger report.
func LedgerReport(l *ledger.Report) *Report {
	return &Report{Ledger: l}
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry, replacing any
// existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// grid is the tabular form of a report shared by the text formatters.
type grid struct {
	headers []string
	rows    [][]string
	footer  []string
	right   []bool
}

func (r *Report) grid() grid {
	if r.Run != nil {
		return runGrid(r.Run)
	}
	if r.Ledger != nil {
		return ledgerGrid(r.Ledger)
	}
	return grid{}
}

func runGrid(s *runner.Summary) grid {
	g := grid{
		headers: []string{"CLASS", "SCANNED", "KNOWN", "PENDING", "DONE", "BEFORE", "AFTER", "SAVED"},
		right:   []bool{false, true, true, true, true, true, true, true},
	}
	var scanned, known, pending int
	for _, c := range s.Classes {
		scanned += c.Scanned
		known += c.Known
		pending += c.Pending
		g.rows = append(g.rows, []string{
			c.Class.String(),
			itoa(c.Scanned),
			itoa(c.Known),
			itoa(c.Pending),
			itoa(c.Result.Units),
			size(c.Result.BytesBefore),
			size(c.Result.BytesAfter),
			types.FormatSize(c.Result.BytesSaved),
		})
	}
	total := s.Total()
	g.footer = []string{
		"total",
		itoa(scanned),
		itoa(known),
		itoa(pending),
		itoa(total.Units),
		size(total.BytesBefore),
		size(total.BytesAfter),
		types.FormatSize(total.BytesSaved),
	}
	return g
}

func ledgerGrid(l *ledger.Report) grid {
	g := grid{
		headers: []string{"CLASS", "FILES", "SAVED", "LARGEST"},
		right:   []bool{false, true, true, false},
	}
	for _, c := range l.Classes {
		g.rows = append(g.rows, []string{c.Class.String(), itoa(c.Files), size(c.BytesSaved), largest(c)})
	}
	g.footer = []string{"total", itoa(l.Total.Files), size(l.Total.BytesSaved), largest(l.Total)}
	return g
}

func largest(s ledger.Summary) string {
	if s.Largest.BytesSaved == 0 {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", s.Largest.Identity.Name, size(s.Largest.BytesSaved))
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}

func size(n uint64) string {
	return types.FormatSize(int64(n))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
