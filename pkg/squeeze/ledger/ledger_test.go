package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/squeeze/pkg/squeeze/manifest"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

type fakeSource map[types.MediaClass]*manifest.Ledger

func (f fakeSource) ReadLedger(class types.MediaClass) (*manifest.Ledger, error) {
	if l, ok := f[class]; ok {
		return l, nil
	}
	return &manifest.Ledger{Class: class}, nil
}

type failingSource struct{}

func (failingSource) ReadLedger(types.MediaClass) (*manifest.Ledger, error) {
	return nil, errors.New("permission denied")
}

func rec(name string, saved uint64) types.ReductionRecord {
	return types.ReductionRecord{Identity: types.Identity{Name: name, Size: 10, Hash: "h" + name}, BytesSaved: saved}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Summarize(types.Image, []types.ReductionRecord{rec("a.jpg", 100), rec("b.jpg", 1500), rec("a.jpg", 100)})
	assert.Equal(t, 3, s.Files)
	assert.Equal(t, uint64(1700), s.BytesSaved)
	assert.Equal(t, "b.jpg", s.Largest.Identity.Name)

	empty := Summarize(types.Video, nil)
	assert.Zero(t, empty.Files)
	assert.Zero(t, empty.BytesSaved)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	src := fakeSource{
		types.Image:    {Records: []types.ReductionRecord{rec("a.jpg", 100), rec("b.jpg", 200)}, Invalid: 1},
		types.Document: {Records: []types.ReductionRecord{rec("r.pdf", 5000)}},
	}

	r, err := Build(src, types.AllClasses())
	require.NoError(t, err)
	require.Len(t, r.Classes, 3)

	assert.Equal(t, uint64(300), r.Classes[0].BytesSaved)
	assert.Equal(t, 1, r.Classes[0].Invalid)
	assert.Zero(t, r.Classes[1].Files)
	assert.Equal(t, 3, r.Total.Files)
	assert.Equal(t, uint64(5300), r.Total.BytesSaved)
	assert.Equal(t, "r.pdf", r.Total.Largest.Identity.Name)
}

func TestBuild_FromStore(t *testing.T) {
	t.Parallel()

	store, err := manifest.Open(t.TempDir(), ".optim", manifest.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.AppendReduction(types.Video, rec("clip.mp4", 1<<20)))

	r, err := Build(store, []types.MediaClass{types.Video})
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<20), r.Total.BytesSaved)
}

func TestBuild_Error(t *testing.T) {
	t.Parallel()

	_, err := Build(failingSource{}, []types.MediaClass{types.Image})
	assert.ErrorContains(t, err, "permission denied")
}
