package output

import (
	"time"

	"github.com/jamesainslie/squeeze/pkg/squeeze/dispatch"
	"github.com/jamesainslie/squeeze/pkg/squeeze/ledger"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// document is the structure shared by the JSON and YAML formatters.
type document struct {
	Run    *runDocument   `json:"run,omitempty" yaml:"run,omitempty"`
	Ledger *ledger.Report `json:"ledger,omitempty" yaml:"ledger,omitempty"`
}

type runDocument struct {
	RunID     string          `json:"run_id" yaml:"run_id"`
	Root      string          `json:"root" yaml:"root"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Elapsed   string          `json:"elapsed" yaml:"elapsed"`
	DryRun    bool            `json:"dry_run" yaml:"dry_run"`
	Classes   []classDocument `json:"classes" yaml:"classes"`
	Total     dispatch.Result `json:"total" yaml:"total"`
	Warnings  []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type classDocument struct {
	Class     types.MediaClass  `json:"class" yaml:"class"`
	Scanned   int               `json:"scanned" yaml:"scanned"`
	Skipped   int               `json:"skipped" yaml:"skipped"`
	Known     int               `json:"known" yaml:"known"`
	Pending   int               `json:"pending" yaml:"pending"`
	CacheHits int64             `json:"cache_hits" yaml:"cache_hits"`
	Result    dispatch.Result   `json:"result" yaml:"result"`
	Elapsed   string            `json:"elapsed" yaml:"elapsed"`
	Errors    []types.ScanError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func buildDocument(r *Report) document {
	doc := document{Ledger: r.Ledger}
	if r.Run == nil {
		return doc
	}

	s := r.Run
	run := &runDocument{
		RunID:     s.RunID,
		Root:      s.Root,
		StartedAt: s.StartedAt,
		Elapsed:   formatDurationString(s.Elapsed),
		DryRun:    s.DryRun,
		Classes:   make([]classDocument, len(s.Classes)),
		Total:     s.Total(),
		Warnings:  s.Warnings,
	}
	for i, c := range s.Classes {
		run.Classes[i] = classDocument{
			Class:     c.Class,
			Scanned:   c.Scanned,
			Skipped:   c.Skipped,
			Known:     c.Known,
			Pending:   c.Pending,
			CacheHits: c.CacheHits,
			Result:    c.Result,
			Elapsed:   formatDurationString(c.Elapsed),
			Errors:    c.Errors,
		}
	}
	doc.Run = run
	return doc
}

// formatDurationString formats a duration for machine-readable output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

