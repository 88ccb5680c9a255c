package scanner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// ErrUnrepresentableName marks files whose names contain line breaks.
var ErrUnrepresentableName = errors.New("file name contains a line break")

// RootError reports that the scan root itself could not be read.
// It is fatal for the run.
type RootError struct {
	Root string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("cannot read scan root %s: %v", e.Root, e.Err)
}

func (e *RootError) Unwrap() error {
	return e.Err
}

// Result contains the fingerprints produced by a scan.
type Result struct {
	// Root is the resolved absolute root.
	Root string

	// SingleFile is true when Root names a regular file.
	SingleFile bool

	// Fingerprints holds one entry per selected file, sorted by path.
	Fingerprints []types.Fingerprint

	// FilesSeen is the number of regular files visited.
	FilesSeen int64

	// BytesHashed is the number of bytes read to compute hashes.
	BytesHashed int64

	// CacheHits is the number of hashes served by the hash cache.
	CacheHits int64

	// Skipped lists files and directories that could not be read.
	Skipped []types.ScanError

	// Elapsed is the total time taken to complete the scan.
	Elapsed time.Duration
}

type candidate struct {
	path string
	info os.FileInfo
}

// Scanner fingerprints the files of one media class under a root.
// A Scanner is used for a single Scan.
type Scanner struct {
	opts     Options
	excluder *excluder
	hasher   *Hasher
	log      *logging.Logger

	filesSeen   atomic.Int64
	candidates  atomic.Int64
	hashed      atomic.Int64
	bytesHashed atomic.Int64
	cacheHits   atomic.Int64

	currentPath  atomic.Value
	walkComplete atomic.Bool
	lastProgress atomic.Int64

	mu      sync.Mutex
	pending []candidate
	skipped []types.ScanError
}

// New creates a Scanner. Options are validated and defaults are applied.
func New(opts Options) (*Scanner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ex, err := newExcluder(opts.Exclude)
	if err != nil {
		return nil, err
	}

	s := &Scanner{
		opts:     opts,
		excluder: ex,
		hasher:   NewHasher(opts.Cache, opts.BufferSize),
		log:      logging.Get("scanner"),
	}
	s.currentPath.Store("")
	return s, nil
}

// Hasher returns the hasher used by the scanner, sharing its cache.
func (s *Scanner) Hasher() *Hasher {
	return s.hasher
}

// Scan walks the root and fingerprints every selected file.
// An unreadable root returns a *RootError. Unreadable entries below the
// root are recorded in Result.Skipped and do not stop the scan.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()

	root, info, err := s.validateRoot()
	if err != nil {
		return nil, err
	}

	s.currentPath.Store(root)
	s.reportProgressForce()

	result := &Result{Root: root}

	if info.Mode().IsRegular() {
		result.SingleFile = true
		s.filesSeen.Add(1)
		if s.opts.Spec.Matches(info.Name()) && representable(info.Name()) && info.Size() >= s.opts.Spec.MinSize {
			s.addCandidate(root, info)
		}
	} else if err := s.walk(ctx, root); err != nil {
		return nil, err
	}

	s.walkComplete.Store(true)
	s.reportProgressForce()

	fingerprints, err := s.hashAll(ctx)
	if err != nil {
		return nil, err
	}

	s.reportProgressForce()

	result.Fingerprints = fingerprints
	result.FilesSeen = s.filesSeen.Load()
	result.BytesHashed = s.bytesHashed.Load()
	result.CacheHits = s.cacheHits.Load()
	result.Skipped = s.skipped
	result.Elapsed = time.Since(start)

	s.log.Debug("scan complete",
		"root", root,
		"class", s.opts.Spec.Class,
		"files", result.FilesSeen,
		"selected", len(fingerprints),
		"skipped", len(result.Skipped),
		"cache_hits", result.CacheHits,
		"elapsed", result.Elapsed,
	)

	return result, nil
}

// validateRoot resolves the root to an absolute path and verifies that it
// can be read.
func (s *Scanner) validateRoot() (string, os.FileInfo, error) {
	root, err := filepath.Abs(s.opts.Root)
	if err != nil {
		return "", nil, &RootError{Root: s.opts.Root, Err: err}
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", nil, &RootError{Root: root, Err: err}
	}

	switch {
	case info.IsDir():
		f, err := os.Open(root)
		if err != nil {
			return "", nil, &RootError{Root: root, Err: err}
		}
		defer f.Close()
		if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
			return "", nil, &RootError{Root: root, Err: err}
		}
	case info.Mode().IsRegular():
	default:
		return "", nil, &RootError{Root: root, Err: os.ErrInvalid}
	}

	return root, info, nil
}

func (s *Scanner) walk(ctx context.Context, root string) error {
	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: s.opts.WalkWorkers,
	}

	err := fastwalk.Walk(&conf, root, s.walkCallback(ctx, root))
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return fmt.Errorf("walking %s: %w", root, err)
	}
	return nil
}

func (s *Scanner) walkCallback(ctx context.Context, root string) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fastwalk.ErrSkipFiles
		}

		if err != nil {
			s.addSkipped(path, err)
			return nil
		}

		if path == root {
			return nil
		}

		if s.excluder.excluded(path, d.Name()) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			s.currentPath.Store(path)
			s.reportProgress()
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		s.filesSeen.Add(1)

		if !s.opts.Spec.Matches(d.Name()) {
			return nil
		}
		if !representable(d.Name()) {
			s.addSkipped(path, ErrUnrepresentableName)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.addSkipped(path, err)
			return nil
		}
		if info.Size() < s.opts.Spec.MinSize {
			return nil
		}

		s.addCandidate(path, info)
		return nil
	}
}

// hashAll fingerprints the collected candidates on a bounded worker pool.
func (s *Scanner) hashAll(ctx context.Context) ([]types.Fingerprint, error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	results := make([]*types.Fingerprint, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.HashWorkers)

	for i, c := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			fp, cached, err := s.hasher.fingerprint(c.path, c.info)
			if err != nil {
				s.addSkipped(c.path, err)
				return nil
			}
			if cached {
				s.cacheHits.Add(1)
			} else {
				s.bytesHashed.Add(int64(fp.Size))
			}
			results[i] = &fp

			s.hashed.Add(1)
			s.currentPath.Store(c.path)
			s.reportProgress()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fingerprints := make([]types.Fingerprint, 0, len(results))
	for _, fp := range results {
		if fp != nil {
			fingerprints = append(fingerprints, *fp)
		}
	}
	slices.SortFunc(fingerprints, func(a, b types.Fingerprint) int {
		return cmp.Compare(a.Path, b.Path)
	})

	return fingerprints, nil
}

func (s *Scanner) addCandidate(path string, info os.FileInfo) {
	s.candidates.Add(1)
	s.mu.Lock()
	s.pending = append(s.pending, candidate{path: path, info: info})
	s.mu.Unlock()
}

func (s *Scanner) addSkipped(path string, err error) {
	s.log.Debug("skipping unreadable entry", "path", path, "error", err)
	s.mu.Lock()
	s.skipped = append(s.skipped, types.ScanError{
		Path:  path,
		Error: err.Error(),
	})
	s.mu.Unlock()
}

// reportProgress calls the progress callback at most every 10ms.
func (s *Scanner) reportProgress() {
	if s.opts.OnProgress == nil {
		return
	}

	now := time.Now().UnixMilli()
	last := s.lastProgress.Load()
	if now-last < 10 {
		return
	}
	if !s.lastProgress.CompareAndSwap(last, now) {
		return
	}

	s.sendProgress()
}

func (s *Scanner) reportProgressForce() {
	if s.opts.OnProgress == nil {
		return
	}
	s.lastProgress.Store(time.Now().UnixMilli())
	s.sendProgress()
}

func (s *Scanner) sendProgress() {
	currentPath, _ := s.currentPath.Load().(string)

	s.opts.OnProgress(Progress{
		FilesSeen:    s.filesSeen.Load(),
		Candidates:   s.candidates.Load(),
		Hashed:       s.hashed.Load(),
		BytesHashed:  s.bytesHashed.Load(),
		CurrentPath:  currentPath,
		WalkComplete: s.walkComplete.Load(),
	})
}
