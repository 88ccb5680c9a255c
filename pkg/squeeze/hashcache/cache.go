// Package hashcache remembers content hashes keyed by path, size and
// modification time so unchanged files are not re-read on every run.
package hashcache

import (
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
)

// Cache provides hash lookups backed by a badger store.
// It is safe for concurrent use.
type Cache struct {
	store *Store
	log   *logging.Logger
}

// Open opens or creates a cache at the given directory.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	store, err := OpenStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening hash cache: %w", err)
	}

	return &Cache{
		store: store,
		log:   logging.Get("hashcache"),
	}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Lookup returns the cached hash for path if the entry was recorded for the
// same size and modification time. Read errors are reported as a miss.
func (c *Cache) Lookup(path string, size, mtime int64) (string, bool) {
	entry, err := c.store.Get(path)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.log.Warn("hash cache read failed", "path", path, "error", err)
		}
		return "", false
	}

	if !entry.Matches(size, mtime) {
		return "", false
	}
	return entry.Hash, true
}

// Store records the hash of path at the given size and modification time.
func (c *Cache) Store(path string, size, mtime int64, hash string) error {
	return c.store.Put(path, &Entry{
		Version: Version,
		Size:    size,
		Mtime:   mtime,
		Hash:    hash,
	})
}

// Clear removes all cached entries under root. An empty root clears everything.
func (c *Cache) Clear(root string) error {
	return c.store.DeletePrefix(root)
}

// Count returns the number of cached entries under root.
func (c *Cache) Count(root string) (int, error) {
	return c.store.Count(root)
}
