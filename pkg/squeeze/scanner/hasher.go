package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// Hasher computes content fingerprints. It is safe for concurrent use.
type Hasher struct {
	cache HashCache
	pool  sync.Pool
	log   *logging.Logger
}

// NewHasher returns a hasher that reads with buffers of bufferSize bytes
// and consults cache when non-nil.
func NewHasher(cache HashCache, bufferSize int) *Hasher {
	if bufferSize < 1 {
		bufferSize = 256 * 1024
	}
	h := &Hasher{cache: cache, log: logging.Get("scanner")}
	h.pool.New = func() any {
		buf := make([]byte, bufferSize)
		return &buf
	}
	return h
}

// Fingerprint stats and hashes the file at path.
func (h *Hasher) Fingerprint(path string) (types.Fingerprint, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return types.Fingerprint{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return types.Fingerprint{}, err
	}
	if !info.Mode().IsRegular() {
		return types.Fingerprint{}, fmt.Errorf("%s: not a regular file", abs)
	}

	fp, _, err := h.fingerprint(abs, info)
	return fp, err
}

// fingerprint hashes the file described by info. The returned bool reports
// whether the hash came from the cache.
func (h *Hasher) fingerprint(path string, info os.FileInfo) (types.Fingerprint, bool, error) {
	size := info.Size()
	mtime := info.ModTime().UnixNano()
	name := filepath.Base(path)

	if h.cache != nil {
		if hash, ok := h.cache.Lookup(path, size, mtime); ok {
			return types.Fingerprint{
				Identity: types.Identity{Name: name, Size: uint64(size), Hash: hash},
				Path:     path,
			}, true, nil
		}
	}

	hash, n, err := h.hashFile(path)
	if err != nil {
		return types.Fingerprint{}, false, err
	}

	// The stat size can be stale if the file was written while hashing;
	// the identity uses the bytes actually read.
	if h.cache != nil && n == size {
		if err := h.cache.Store(path, size, mtime, hash); err != nil {
			h.log.Warn("hash cache write failed", "path", path, "error", err)
		}
	}

	return types.Fingerprint{
		Identity: types.Identity{Name: name, Size: uint64(n), Hash: hash},
		Path:     path,
	}, false, nil
}

func (h *Hasher) hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	bufp := h.pool.Get().(*[]byte)
	defer h.pool.Put(bufp)

	digest := sha256.New()
	// Hide WriterTo so the pooled buffer is used.
	n, err := io.CopyBuffer(digest, struct{ io.Reader }{f}, *bufp)
	if err != nil {
		return "", 0, fmt.Errorf("reading %s: %w", path, err)
	}

	return hex.EncodeToString(digest.Sum(nil)), n, nil
}
