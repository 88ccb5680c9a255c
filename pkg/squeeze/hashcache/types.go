package hashcache

import (
	"bytes"
	"encoding/gob"
	"path/filepath"
)

// Version is incremented when the entry format or hash algorithm changes.
// Entries written by another version are treated as misses.
const Version = 1

// Entry is the cached content hash of one file.
type Entry struct {
	Version int
	Size    int64  // File size in bytes at hashing time
	Mtime   int64  // Modification time as UnixNano
	Hash    string // Hex SHA-256 digest
}

// Encode serializes the entry to bytes using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// Matches reports whether the entry is still valid for a file with the
// given size and modification time.
func (e *Entry) Matches(size, mtime int64) bool {
	return e.Version == Version && e.Size == size && e.Mtime == mtime && e.Hash != ""
}

// MakeKey creates a cache key from an absolute file path.
func MakeKey(path string) []byte {
	return []byte(filepath.Clean(path))
}

// MakeKeyPrefix returns the prefix shared by all keys under root.
// An empty root matches every key.
func MakeKeyPrefix(root string) []byte {
	if root == "" {
		return nil
	}
	root = filepath.Clean(root)
	if root == string(filepath.Separator) {
		return []byte(root)
	}
	return []byte(root + string(filepath.Separator))
}
