package diff

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/squeeze/pkg/squeeze/manifest"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

func fingerprint(name string, size uint64, hash string) types.Fingerprint {
	return types.Fingerprint{
		Identity: types.Identity{Name: name, Size: size, Hash: hash},
		Path:     "/media/" + name,
	}
}

func known(ids ...types.Fingerprint) *manifest.Manifest {
	m := manifest.New(types.Image)
	for _, fp := range ids {
		m.Add(fp.Identity)
	}
	return m
}

func paths(items []types.WorkItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Path
	}
	return out
}

func TestDetect(t *testing.T) {
	t.Parallel()

	a := fingerprint("a.jpg", 100, "aa")
	b := fingerprint("b.jpg", 200, "bb")

	tests := []struct {
		name    string
		stored  *manifest.Manifest
		scanned []types.Fingerprint
		want    []string
	}{
		{
			name:    "empty manifest returns everything",
			stored:  known(),
			scanned: []types.Fingerprint{a, b},
			want:    []string{"/media/a.jpg", "/media/b.jpg"},
		},
		{
			name:    "unchanged files are excluded",
			stored:  known(a, b),
			scanned: []types.Fingerprint{a, b},
			want:    []string{},
		},
		{
			name:    "content change re-enters",
			stored:  known(a, b),
			scanned: []types.Fingerprint{a, fingerprint("b.jpg", 200, "b2")},
			want:    []string{"/media/b.jpg"},
		},
		{
			name:    "size change re-enters",
			stored:  known(a),
			scanned: []types.Fingerprint{fingerprint("a.jpg", 101, "aa")},
			want:    []string{"/media/a.jpg"},
		},
		{
			name:    "rename re-enters",
			stored:  known(a),
			scanned: []types.Fingerprint{fingerprint("renamed.jpg", 100, "aa")},
			want:    []string{"/media/renamed.jpg"},
		},
		{
			name:    "deleted files are ignored",
			stored:  known(a, b),
			scanned: []types.Fingerprint{a},
			want:    []string{},
		},
		{
			name:    "nil manifest treated as empty",
			stored:  nil,
			scanned: []types.Fingerprint{a},
			want:    []string{"/media/a.jpg"},
		},
		{
			name:    "empty scan",
			stored:  known(a),
			scanned: nil,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			items, err := Detect(context.Background(), tt.stored, tt.scanned, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.want, paths(items))
		})
	}
}

func TestDetect_CarriesIdentity(t *testing.T) {
	t.Parallel()

	fp := fingerprint("clip.mp4", 4096, "ff")
	items, err := Detect(context.Background(), known(), []types.Fingerprint{fp}, Options{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, fp.Identity, items[0].Identity)
	assert.Equal(t, uint64(4096), items[0].OriginalSize)
}

func TestDetectWithStats_ShardedCompleteness(t *testing.T) {
	t.Parallel()

	var scanned []types.Fingerprint
	stored := manifest.New(types.Image)
	for i := 0; i < 1000; i++ {
		fp := fingerprint(fmt.Sprintf("f%04d.jpg", i), uint64(i), fmt.Sprintf("%x", i))
		scanned = append(scanned, fp)
		if i%3 == 0 {
			stored.Add(fp.Identity)
		}
	}

	// Small shards and a narrow fan-out force many waves.
	items, stats, err := DetectWithStats(context.Background(), stored, scanned, Options{Workers: 3, ShardSize: 7})
	require.NoError(t, err)

	assert.Equal(t, 1000, stats.Scanned)
	assert.Equal(t, 334, stats.Known)
	assert.Equal(t, 666, stats.Pending)
	require.Len(t, items, 666)

	seen := make(map[string]int)
	prev := ""
	for _, item := range items {
		seen[item.Path]++
		assert.False(t, stored.Contains(item.Identity))
		assert.Greater(t, item.Path, prev, "output keeps scan order")
		prev = item.Path
	}
	for path, n := range seen {
		assert.Equal(t, 1, n, "%s appears more than once", path)
	}
}

func TestDetect_OrderIndependent(t *testing.T) {
	t.Parallel()

	a := fingerprint("a.jpg", 1, "aa")
	b := fingerprint("b.jpg", 2, "bb")
	c := fingerprint("c.jpg", 3, "cc")

	forward := manifest.New(types.Image)
	forward.Add(a.Identity)
	forward.Add(c.Identity)
	backward := manifest.New(types.Image)
	backward.Add(c.Identity)
	backward.Add(a.Identity)

	x, err := Detect(context.Background(), forward, []types.Fingerprint{a, b, c}, Options{ShardSize: 1})
	require.NoError(t, err)
	y, err := Detect(context.Background(), backward, []types.Fingerprint{a, b, c}, Options{ShardSize: 1})
	require.NoError(t, err)
	assert.Equal(t, x, y)
	assert.Equal(t, []string{"/media/b.jpg"}, paths(x))
}

func TestDetect_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Detect(ctx, known(), []types.Fingerprint{fingerprint("a.jpg", 1, "aa")}, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
