package hashcache

import (
	"path/filepath"
	"sync"
	"testing"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := Open(filepath.Join(t.TempDir(), "hashes"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestCacheLookupMiss(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)
	if _, ok := cache.Lookup("/media/a.jpg", 10, 1); ok {
		t.Error("expected miss on empty cache")
	}
}

func TestCacheStoreLookup(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)
	if err := cache.Store("/media/a.jpg", 2048, 1700000000, "deadbeef"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	hash, ok := cache.Lookup("/media/a.jpg", 2048, 1700000000)
	if !ok || hash != "deadbeef" {
		t.Errorf("Lookup = (%q, %v), want (deadbeef, true)", hash, ok)
	}

	tests := []struct {
		name  string
		path  string
		size  int64
		mtime int64
	}{
		{"size changed", "/media/a.jpg", 2047, 1700000000},
		{"mtime changed", "/media/a.jpg", 2048, 1700000001},
		{"other path", "/media/b.jpg", 2048, 1700000000},
	}
	for _, tt := range tests {
		if _, ok := cache.Lookup(tt.path, tt.size, tt.mtime); ok {
			t.Errorf("%s: expected miss", tt.name)
		}
	}
}

func TestCacheStoreOverwrites(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)
	if err := cache.Store("/m/a.pdf", 1, 1, "old"); err != nil {
		t.Fatal(err)
	}
	if err := cache.Store("/m/a.pdf", 2, 2, "new"); err != nil {
		t.Fatal(err)
	}

	if _, ok := cache.Lookup("/m/a.pdf", 1, 1); ok {
		t.Error("stale entry should have been replaced")
	}
	if hash, ok := cache.Lookup("/m/a.pdf", 2, 2); !ok || hash != "new" {
		t.Errorf("Lookup = (%q, %v), want (new, true)", hash, ok)
	}
}

func TestCacheClearAndCount(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)
	for _, p := range []string{"/a/1.jpg", "/a/sub/2.jpg", "/ab/3.jpg", "/b/4.jpg"} {
		if err := cache.Store(p, 1, 1, "h"); err != nil {
			t.Fatal(err)
		}
	}

	count, err := cache.Count("")
	if err != nil || count != 4 {
		t.Fatalf("Count(\"\") = %d, %v; want 4", count, err)
	}

	count, err = cache.Count("/a")
	if err != nil || count != 2 {
		t.Fatalf("Count(/a) = %d, %v; want 2", count, err)
	}

	if err := cache.Clear("/a"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := cache.Lookup("/ab/3.jpg", 1, 1); !ok {
		t.Error("sibling with shared string prefix must survive Clear(/a)")
	}
	if _, ok := cache.Lookup("/a/1.jpg", 1, 1); ok {
		t.Error("entry under cleared root should be gone")
	}

	if err := cache.Clear(""); err != nil {
		t.Fatalf("Clear all failed: %v", err)
	}
	count, err = cache.Count("")
	if err != nil || count != 0 {
		t.Errorf("Count after clear = %d, %v; want 0", count, err)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	cache := openTestCache(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			path := filepath.Join("/c", string(rune('a'+n))+".png")
			if err := cache.Store(path, int64(n), 1, "h"); err != nil {
				t.Errorf("Store failed: %v", err)
			}
			cache.Lookup(path, int64(n), 1)
		}(i)
	}
	wg.Wait()

	count, err := cache.Count("/c")
	if err != nil || count != 8 {
		t.Errorf("Count = %d, %v; want 8", count, err)
	}
}

func TestEntryMatches(t *testing.T) {
	t.Parallel()

	e := &Entry{Version: Version, Size: 5, Mtime: 9, Hash: "x"}
	if !e.Matches(5, 9) {
		t.Error("expected match")
	}

	old := &Entry{Version: Version - 1, Size: 5, Mtime: 9, Hash: "x"}
	if old.Matches(5, 9) {
		t.Error("entry from another version must not match")
	}

	empty := &Entry{Version: Version, Size: 5, Mtime: 9}
	if empty.Matches(5, 9) {
		t.Error("entry without hash must not match")
	}
}

func TestEntryEncodeDecode(t *testing.T) {
	t.Parallel()

	in := &Entry{Version: Version, Size: 42, Mtime: 7, Hash: "abc"}
	data, err := in.Encode()
	if err != nil {
		t.Fatal(err)
	}
	var out Entry
	if err := out.Decode(data); err != nil {
		t.Fatal(err)
	}
	if out != *in {
		t.Errorf("decoded %+v, want %+v", out, *in)
	}
}

func TestMakeKeyPrefix(t *testing.T) {
	t.Parallel()

	if got := string(MakeKeyPrefix("/a/")); got != "/a/" {
		t.Errorf("MakeKeyPrefix(/a/) = %q", got)
	}
	if got := string(MakeKeyPrefix("/")); got != "/" {
		t.Errorf("MakeKeyPrefix(/) = %q", got)
	}
	if got := MakeKeyPrefix(""); got != nil {
		t.Errorf("MakeKeyPrefix(\"\") = %q, want nil", got)
	}
}
