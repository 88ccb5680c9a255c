// Package diff computes the set of scanned files that are not yet known
// to the manifest.
package diff

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/squeeze/pkg/squeeze/manifest"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

const (
	// DefaultWorkers is the number of shards compared concurrently in one wave.
	DefaultWorkers = 8

	// DefaultShardSize is the number of fingerprints per shard.
	DefaultShardSize = 1024
)

// Options configures change detection.
type Options struct {
	// Workers is the fan-out of each wave. Values < 1 use DefaultWorkers.
	Workers int

	// ShardSize is the number of fingerprints per shard. Values < 1 use
	// DefaultShardSize.
	ShardSize int
}

// DefaultOptions returns the default detection options.
func DefaultOptions() Options {
	return Options{Workers: DefaultWorkers, ShardSize: DefaultShardSize}
}

func (o Options) normalized() Options {
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	if o.ShardSize < 1 {
		o.ShardSize = DefaultShardSize
	}
	return o
}

// Stats summarizes one detection.
type Stats struct {
	Scanned int `json:"scanned"`
	Known   int `json:"known"`
	Pending int `json:"pending"`
}

// Detect returns a work item for every scanned fingerprint whose identity
// is absent from stored, in scan order.
func Detect(ctx context.Context, stored *manifest.Manifest, scanned []types.Fingerprint, opts Options) ([]types.WorkItem, error) {
	items, _, err := DetectWithStats(ctx, stored, scanned, opts)
	return items, err
}

// DetectWithStats is Detect with counts.
//
// Shards are compared in waves of opts.Workers goroutines; each wave
// completes before the next starts. Partial results are joined in shard
// order so the output order matches the input order.
func DetectWithStats(ctx context.Context, stored *manifest.Manifest, scanned []types.Fingerprint, opts Options) ([]types.WorkItem, Stats, error) {
	opts = opts.normalized()
	if stored == nil {
		stored = manifest.New(types.Image)
	}

	shards := lo.Chunk(scanned, opts.ShardSize)
	partials := make([][]types.WorkItem, len(shards))

	for _, wave := range lo.Chunk(lo.Range(len(shards)), opts.Workers) {
		if err := ctx.Err(); err != nil {
			return nil, Stats{}, fmt.Errorf("change detection cancelled: %w", err)
		}

		var g errgroup.Group
		for _, idx := range wave {
			g.Go(func() error {
				partials[idx] = pending(stored, shards[idx])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, Stats{}, err
		}
	}

	items := lo.Flatten(partials)
	stats := Stats{
		Scanned: len(scanned),
		Pending: len(items),
		Known:   len(scanned) - len(items),
	}

	return items, stats, nil
}

func pending(stored *manifest.Manifest, shard []types.Fingerprint) []types.WorkItem {
	var out []types.WorkItem
	for _, fp := range shard {
		if stored.Contains(fp.Identity) {
			continue
		}
		out = append(out, types.NewWorkItem(fp))
	}
	return out
}
