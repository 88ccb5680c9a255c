// Package ledger summarizes the reduction records written by past runs.
// It is read-only and is never consulted while optimizing.
package ledger

import (
	"fmt"

	"github.com/jamesainslie/squeeze/pkg/squeeze/manifest"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// Source reads the reduction ledger of a class.
type Source interface {
	ReadLedger(class types.MediaClass) (*manifest.Ledger, error)
}

// Summary totals the ledger of one class.
type Summary struct {
	Class      types.MediaClass      `json:"class" yaml:"class"`
	Files      int                   `json:"files" yaml:"files"`
	BytesSaved uint64                `json:"bytes_saved" yaml:"bytes_saved"`
	Largest    types.ReductionRecord `json:"largest" yaml:"largest"`
	Invalid    int                   `json:"invalid,omitempty" yaml:"invalid,omitempty"`
}

// Report totals the ledgers of several classes.
type Report struct {
	Dir     string    `json:"dir" yaml:"dir"`
	Classes []Summary `json:"classes" yaml:"classes"`
	Total   Summary   `json:"total" yaml:"total"`
}

// Summarize totals records. The same identity recorded twice is counted
// twice: each record is a separate optimization pass.
func Summarize(class types.MediaClass, records []types.ReductionRecord) Summary {
	s := Summary{Class: class}
	for _, rec := range records {
		s.Files++
		s.BytesSaved += rec.BytesSaved
		if rec.BytesSaved > s.Largest.BytesSaved {
			s.Largest = rec
		}
	}
	return s
}

// Build reads and summarizes the ledger of each class.
func Build(src Source, classes []types.MediaClass) (*Report, error) {
	r := &Report{}
	for _, class := range classes {
		l, err := src.ReadLedger(class)
		if err != nil {
			return nil, fmt.Errorf("reading %s ledger: %w", class, err)
		}

		s := Summarize(class, l.Records)
		s.Invalid = l.Invalid
		r.Classes = append(r.Classes, s)

		r.Total.Files += s.Files
		r.Total.BytesSaved += s.BytesSaved
		r.Total.Invalid += s.Invalid
		if s.Largest.BytesSaved > r.Total.Largest.BytesSaved {
			r.Total.Largest = s.Largest
		}
	}
	return r, nil
}
