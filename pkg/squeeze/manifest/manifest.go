// Package manifest persists the identities of files squeeze has already
// optimized, together with a ledger of the bytes each optimization saved.
//
// Both logs are plain text, one record per line, and only ever appended to.
// Every record is written and flushed before the next unit of work starts,
// so an interrupted run resumes from the last completed file.
package manifest

import (
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// Manifest is the set of known-good identities for one media class.
// It is safe for concurrent reads once loading has finished.
type Manifest struct {
	// Class is the media class the manifest belongs to.
	Class types.MediaClass

	// Invalid counts lines that could not be parsed while loading.
	Invalid int

	entries []types.Identity
	index   map[types.Identity]struct{}
}

// New returns an empty manifest.
func New(class types.MediaClass) *Manifest {
	return &Manifest{
		Class: class,
		index: make(map[types.Identity]struct{}),
	}
}

// Add inserts id and reports whether it was not already present.
func (m *Manifest) Add(id types.Identity) bool {
	if _, ok := m.index[id]; ok {
		return false
	}
	m.index[id] = struct{}{}
	m.entries = append(m.entries, id)
	return true
}

// Contains reports whether id is a known-good identity.
func (m *Manifest) Contains(id types.Identity) bool {
	_, ok := m.index[id]
	return ok
}

// Len returns the number of distinct identities.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Entries returns the distinct identities in first-seen order.
func (m *Manifest) Entries() []types.Identity {
	out := make([]types.Identity, len(m.entries))
	copy(out, m.entries)
	return out
}

// Ledger holds the reduction records of one media class.
type Ledger struct {
	Class   types.MediaClass
	Records []types.ReductionRecord
	Invalid int
}

// IdentityFile returns the identity log file name for a class.
func IdentityFile(class types.MediaClass) string {
	return class.String() + ".man"
}

// ReductionFile returns the reduction ledger file name for a class.
func ReductionFile(class types.MediaClass) string {
	return class.String() + "_reduction.man"
}
