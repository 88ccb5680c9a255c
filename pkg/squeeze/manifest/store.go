package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// LockFile is the name of the advisory lock held by a running optimizer.
const LockFile = "lock"

// ErrLocked is returned when another run holds the manifest lock.
var ErrLocked = errors.New("manifest is locked by another run")

// WriteError reports a failed manifest or ledger append. It is fatal for
// the run because the optimized file cannot be marked as known-good.
type WriteError struct {
	Class types.MediaClass
	Path  string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s manifest %s: %v", e.Class, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Store loads and appends manifest records.
type Store interface {
	// Load returns the known-good identities for class. A missing log
	// yields an empty manifest.
	Load(class types.MediaClass) (*Manifest, error)

	// Append durably records id as known-good.
	Append(class types.MediaClass, id types.Identity) error

	// AppendReduction durably records a reduction.
	AppendReduction(class types.MediaClass, rec types.ReductionRecord) error

	// Close releases file handles and locks.
	Close() error
}

// Reader reads manifest and ledger files without taking the run lock.
type Reader struct {
	dir string
}

// NewReader returns a reader for the manifest directory dir.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Dir returns the manifest directory.
func (r *Reader) Dir() string {
	return r.dir
}

// Load reads the identity log for class.
func (r *Reader) Load(class types.MediaClass) (*Manifest, error) {
	m := New(class)
	path := filepath.Join(r.dir, IdentityFile(class))

	err := readLines(path, func(line string) {
		id, err := DecodeIdentity(line)
		if err != nil {
			m.Invalid++
			return
		}
		m.Add(id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s manifest: %w", class, err)
	}

	return m, nil
}

// ReadLedger reads the reduction ledger for class.
func (r *Reader) ReadLedger(class types.MediaClass) (*Ledger, error) {
	return ReadLedgerFile(class, filepath.Join(r.dir, ReductionFile(class)))
}

// readLines calls fn for each non-empty line of path. A missing file has
// no lines.
func readLines(path string, fn func(string)) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fn(line)
	}
	return scanner.Err()
}

// Options configures a FileStore.
type Options struct {
	// Fsync syncs each record to stable storage after writing it.
	Fsync bool
}

// FileStore is the append-only, on-disk Store. It holds an exclusive
// advisory lock on the manifest directory until Close.
type FileStore struct {
	*Reader

	opts  Options
	lock  *flock.Flock
	mu    sync.Mutex
	files map[string]*os.File
}

// Open creates the manifest directory <root>/<dirName> if needed and
// acquires its lock. It returns ErrLocked if another run holds it.
func Open(root, dirName string, opts Options) (*FileStore, error) {
	if root == "" || dirName == "" {
		return nil, errors.New("manifest root and directory cannot be empty")
	}

	dir := filepath.Join(root, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock manifest directory: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}

	return &FileStore{
		Reader: NewReader(dir),
		opts:   opts,
		lock:   lock,
		files:  make(map[string]*os.File),
	}, nil
}

// Append records id in the class identity log.
func (s *FileStore) Append(class types.MediaClass, id types.Identity) error {
	line, err := EncodeIdentity(id)
	if err != nil {
		return &WriteError{Class: class, Path: filepath.Join(s.dir, IdentityFile(class)), Err: err}
	}
	return s.appendLine(class, IdentityFile(class), line)
}

// AppendReduction records rec in the class reduction ledger.
func (s *FileStore) AppendReduction(class types.MediaClass, rec types.ReductionRecord) error {
	line, err := EncodeReduction(rec)
	if err != nil {
		return &WriteError{Class: class, Path: filepath.Join(s.dir, ReductionFile(class)), Err: err}
	}
	return s.appendLine(class, ReductionFile(class), line)
}

// appendLine writes one complete line with a single write call, then
// optionally syncs it.
func (s *FileStore) appendLine(class types.MediaClass, name, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, name)

	f, err := s.file(name)
	if err != nil {
		return &WriteError{Class: class, Path: path, Err: err}
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		return &WriteError{Class: class, Path: path, Err: err}
	}

	if s.opts.Fsync {
		if err := f.Sync(); err != nil {
			return &WriteError{Class: class, Path: path, Err: err}
		}
	}

	return nil
}

// file returns the open handle for name, opening it on first use. A file
// whose last record was cut short by a crash gets a newline first so the
// next record starts on its own line.
//
// Must be called with s.mu held.
func (s *FileStore) file(name string) (*os.File, error) {
	if f, ok := s.files[name]; ok {
		return f, nil
	}

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	if err := terminateLastLine(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	s.files[name] = f
	return f, nil
}

func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if last[0] == '\n' {
		return nil
	}

	_, err = f.WriteString("\n")
	return err
}

// Close closes every open log and releases the lock.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
		delete(s.files, name)
	}

	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("releasing manifest lock: %w", err))
		}
	}

	return errors.Join(errs...)
}

// nopStore is the Store used when manifests are disabled.
type nopStore struct{}

// Nop returns a Store that remembers nothing: Load always returns an empty
// manifest and appends are discarded. Every run then re-processes every
// file, which repeatedly degrades lossy formats.
func Nop() Store {
	return nopStore{}
}

// IsNop reports whether s is the disabled store.
func IsNop(s Store) bool {
	_, ok := s.(nopStore)
	return ok
}

func (nopStore) Load(class types.MediaClass) (*Manifest, error) {
	return New(class), nil
}

func (nopStore) Append(types.MediaClass, types.Identity) error {
	return nil
}

func (nopStore) AppendReduction(types.MediaClass, types.ReductionRecord) error {
	return nil
}

func (nopStore) Close() error {
	return nil
}

// ReadLedgerFile reads a reduction ledger at an explicit path.
func ReadLedgerFile(class types.MediaClass, path string) (*Ledger, error) {
	ledger := &Ledger{Class: class}
	err := readLines(path, func(line string) {
		rec, err := DecodeReduction(line)
		if err != nil {
			ledger.Invalid++
			return
		}
		ledger.Records = append(ledger.Records, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", path, err)
	}
	return ledger, nil
}
