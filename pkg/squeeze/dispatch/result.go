package dispatch

import (
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// Result aggregates the outcome of dispatching one media class.
type Result struct {
	Class types.MediaClass `json:"class" yaml:"class"`

	// Units is the number of files processed and recorded.
	Units int `json:"units" yaml:"units"`

	// Invocations is the number of optimizer calls made.
	Invocations int `json:"invocations" yaml:"invocations"`

	// Modified counts files whose identity changed.
	Modified int `json:"modified" yaml:"modified"`

	// Grown counts files that got larger.
	Grown int `json:"grown" yaml:"grown"`

	// Reduced counts files that got smaller. Each one has a ledger record.
	Reduced int `json:"reduced" yaml:"reduced"`

	BytesBefore uint64 `json:"bytes_before" yaml:"bytes_before"`
	BytesAfter  uint64 `json:"bytes_after" yaml:"bytes_after"`

	// BytesSaved is BytesBefore minus BytesAfter. It is negative when the
	// optimizers grew the class overall.
	BytesSaved int64 `json:"bytes_saved" yaml:"bytes_saved"`

	// BytesReclaimed sums only positive savings, matching the ledger.
	BytesReclaimed uint64 `json:"bytes_reclaimed" yaml:"bytes_reclaimed"`
}

// Merge adds other's counters to r. The class is kept.
func (r *Result) Merge(other Result) {
	r.Units += other.Units
	r.Invocations += other.Invocations
	r.Modified += other.Modified
	r.Grown += other.Grown
	r.Reduced += other.Reduced
	r.BytesBefore += other.BytesBefore
	r.BytesAfter += other.BytesAfter
	r.BytesSaved += other.BytesSaved
	r.BytesReclaimed += other.BytesReclaimed
}

// Ratio returns the fraction of bytes saved, or 0 for an empty result.
func (r Result) Ratio() float64 {
	if r.BytesBefore == 0 {
		return 0
	}
	return float64(r.BytesSaved) / float64(r.BytesBefore)
}

func (r *Result) record(item types.WorkItem, after types.Fingerprint) int64 {
	saved := int64(item.OriginalSize) - int64(after.Size)

	r.Units++
	r.BytesBefore += item.OriginalSize
	r.BytesAfter += after.Size
	r.BytesSaved += saved

	if after.Identity != item.Identity {
		r.Modified++
	}
	switch {
	case saved > 0:
		r.Reduced++
		r.BytesReclaimed += uint64(saved)
	case saved < 0:
		r.Grown++
	}
	return saved
}
