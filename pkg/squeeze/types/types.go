// Package types provides the core data model shared by the squeeze engine:
// content identities, media classes, work items and reduction records,
// along with utility functions for parsing and formatting file sizes.
package types

import (
	"fmt"
)

// Identity is the content-addressed identity of a file.
// Two files with equal identities are treated as the same known-good artifact.
// Equality is over all three fields; the value is usable as a map key.
type Identity struct {
	// Name is the file's basename without its directory. Identically named
	// files with identical content in different directories share one
	// identity.
	Name string `json:"name" yaml:"name"`

	// Size is the on-disk size in bytes at hashing time.
	Size uint64 `json:"size" yaml:"size"`

	// Hash is the lowercase hex SHA-256 digest of the file's bytes.
	Hash string `json:"hash" yaml:"hash"`
}

// String renders the identity for logs.
func (id Identity) String() string {
	return fmt.Sprintf("%s (%s, %.12s)", id.Name, FormatSize(int64(id.Size)), id.Hash)
}

// Fingerprint pairs an Identity with the absolute path it was computed from.
type Fingerprint struct {
	Identity

	// Path is the absolute path to the file.
	Path string `json:"path" yaml:"path"`
}

// WorkItem is a file selected for processing.
type WorkItem struct {
	// Path is the absolute path to the file.
	Path string `json:"path"`

	// OriginalSize is the size in bytes before processing.
	OriginalSize uint64 `json:"original_size"`

	// Identity is the pre-processing identity of the file.
	Identity Identity `json:"identity"`
}

// NewWorkItem builds a WorkItem from a scan fingerprint.
func NewWorkItem(fp Fingerprint) WorkItem {
	return WorkItem{
		Path:         fp.Path,
		OriginalSize: fp.Size,
		Identity:     fp.Identity,
	}
}

// ReductionRecord records the bytes saved by optimizing one file.
// Records are only written when BytesSaved is positive.
type ReductionRecord struct {
	// Identity is the post-processing identity of the file.
	Identity Identity `json:"identity" yaml:"identity"`

	// BytesSaved is the original size minus the new size.
	BytesSaved uint64 `json:"bytes_saved" yaml:"bytes_saved"`
}

// ScanError represents a recovered error encountered during scanning.
// It pairs a file path with the error message for debugging and reporting.
type ScanError struct {
	// Path is the file or directory path where the error occurred.
	Path string `json:"path"`

	// Error is the error message describing what went wrong.
	Error string `json:"error"`
}
