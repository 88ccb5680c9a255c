package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(50 * time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	require.NoError(t, w.Watch(root))
	return w
}

func TestWatch_SkipsHiddenDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "album", "2024"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".optim"), 0o755))

	w := newWatcher(t, root)
	assert.Equal(t, 3, w.Watched())

	w.mu.RLock()
	defer w.mu.RUnlock()
	assert.False(t, w.paths[filepath.Join(root, ".optim")])
	assert.True(t, w.paths[filepath.Join(root, "album", "2024")])
}

func TestRun_TriggersAfterQuietPeriod(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w := newWatcher(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			runs.Add(1)
			return nil
		})
	}()

	// A burst of writes collapses into one run.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "a.jpg"), []byte{byte(i)}, 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	cancel()
	assert.NoError(t, <-done)
}

func TestRun_IgnoresHiddenFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w := newWatcher(t, root)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var runs atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(root, ".a.squeeze-tmp.mp4"), []byte("x"), 0o644)
	}()

	require.NoError(t, w.Run(ctx, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	assert.Zero(t, runs.Load())
}

func TestRun_WatchesNewDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w := newWatcher(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	go func() {
		_ = w.Run(ctx, func(context.Context) error {
			runs.Add(1)
			return nil
		})
	}()

	sub := filepath.Join(root, "new")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool {
		w.mu.RLock()
		defer w.mu.RUnlock()
		return w.paths[sub]
	}, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	before := runs.Load()

	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.png"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return runs.Load() > before }, 3*time.Second, 10*time.Millisecond)
}

func TestRun_StopsOnTriggerError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w := newWatcher(t, root)

	boom := errors.New("optimizer failed")
	done := make(chan error, 1)
	go func() {
		done <- w.Run(context.Background(), func(context.Context) error { return boom })
	}()

	require.NoError(t, os.WriteFile(filepath.Join(root, "c.pdf"), []byte("x"), 0o644))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after trigger failure")
	}
}

func TestIsSubPath(t *testing.T) {
	t.Parallel()

	assert.True(t, isSubPath("/a/b/c", "/a/b"))
	assert.False(t, isSubPath("/a/bc", "/a/b"))
	assert.False(t, isSubPath("/a/b", "/a/b"))
}
