// Package scanner fingerprints the media files under a root. Directory
// traversal runs on fastwalk's worker pool; content hashing runs on a
// separate bounded pool so large flat directories still hash in parallel.
package scanner

import (
	"github.com/jamesainslie/squeeze/pkg/squeeze/config"
	"github.com/jamesainslie/squeeze/pkg/squeeze/tuner"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// HashCache remembers content hashes between runs. *hashcache.Cache
// satisfies it.
type HashCache interface {
	Lookup(path string, size, mtime int64) (string, bool)
	Store(path string, size, mtime int64, hash string) error
}

// Progress is a snapshot of scan progress.
type Progress struct {
	// FilesSeen is the number of regular files visited.
	FilesSeen int64

	// Candidates is the number of files selected for hashing.
	Candidates int64

	// Hashed is the number of candidates fingerprinted so far.
	Hashed int64

	// BytesHashed is the number of bytes read while hashing.
	BytesHashed int64

	// CurrentPath is the path most recently visited.
	CurrentPath string

	// WalkComplete indicates directory traversal is finished.
	WalkComplete bool
}

// Options configures the scanner behavior.
type Options struct {
	// Root is the directory to scan, or a single file.
	Root string

	// Spec selects the files of one media class.
	Spec types.ClassSpec

	// Exclude contains glob patterns for path components or full paths
	// to skip. Hidden entries are always skipped.
	Exclude []string

	// WalkWorkers is the number of concurrent directory walkers.
	WalkWorkers int

	// HashWorkers is the number of concurrent file hashers.
	HashWorkers int

	// BufferSize is the read buffer used per hashing worker.
	BufferSize int

	// OnProgress is called periodically with scan progress updates.
	// It must be safe to call from multiple goroutines.
	OnProgress func(Progress)

	// Cache is an optional hash cache. Nil disables caching.
	Cache HashCache
}

// DefaultOptions returns options for the given class with tuned worker counts.
func DefaultOptions(spec types.ClassSpec) Options {
	tuned := tuner.Auto()
	return Options{
		Root:        config.DefaultPath,
		Spec:        spec,
		Exclude:     config.DefaultExclusions,
		WalkWorkers: tuned.WalkWorkers,
		HashWorkers: tuned.HashWorkers,
		BufferSize:  tuned.HashBufferSize,
	}
}

// Validate applies defaults for unset values.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = config.DefaultPath
	}
	if o.WalkWorkers < 1 || o.HashWorkers < 1 || o.BufferSize < 1 {
		tuned := tuner.Auto()
		if o.WalkWorkers < 1 {
			o.WalkWorkers = tuned.WalkWorkers
		}
		if o.HashWorkers < 1 {
			o.HashWorkers = tuned.HashWorkers
		}
		if o.BufferSize < 1 {
			o.BufferSize = tuned.HashBufferSize
		}
	}
	if len(o.Spec.Extensions) == 0 {
		o.Spec = types.DefaultClassSpec(o.Spec.Class)
	}
	return nil
}
