// Package dispatch routes pending work to the optimizer for its media class
// and records each finished file in the manifest and reduction ledger.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamesainslie/squeeze/pkg/squeeze/batch"
	"github.com/jamesainslie/squeeze/pkg/squeeze/logging"
	"github.com/jamesainslie/squeeze/pkg/squeeze/optimizer"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

// Recorder persists completed work.
type Recorder interface {
	Append(class types.MediaClass, id types.Identity) error
	AppendReduction(class types.MediaClass, rec types.ReductionRecord) error
}

// Fingerprinter computes the identity of a file after processing.
type Fingerprinter interface {
	Fingerprint(path string) (types.Fingerprint, error)
}

// Sink is notified once per completed file. Completed must not block.
type Sink interface {
	Completed()
}

// NopSink discards notifications.
type NopSink struct{}

// Completed does nothing.
func (NopSink) Completed() {}

// ErrNoOptimizer is returned when a class has no optimizer configured.
var ErrNoOptimizer = errors.New("no optimizer configured")

// Dispatcher processes work items class by class.
type Dispatcher struct {
	Store     Recorder
	Images    optimizer.ImageOptimizer
	Videos    optimizer.VideoTranscoder
	Documents optimizer.DocumentCompressor
	Hasher    Fingerprinter

	// BatchSize is the number of images per optimizer call.
	BatchSize int

	Logger *logging.Logger
}

// Dispatch processes items of class and returns the aggregate result. It
// stops at the first failure; the returned Result covers every file
// recorded before it.
func (d *Dispatcher) Dispatch(ctx context.Context, class types.MediaClass, items []types.WorkItem, sink Sink) (Result, error) {
	if sink == nil {
		sink = NopSink{}
	}
	res := Result{Class: class}
	if len(items) == 0 {
		return res, nil
	}
	if d.Store == nil || d.Hasher == nil {
		return res, errors.New("dispatcher requires a store and a hasher")
	}

	var err error
	switch class {
	case types.Image:
		err = d.images(ctx, items, sink, &res)
	case types.Video:
		if d.Videos == nil {
			return res, fmt.Errorf("%s: %w", class, ErrNoOptimizer)
		}
		err = d.each(ctx, class, items, sink, &res, d.Videos.Transcode)
	case types.Document:
		if d.Documents == nil {
			return res, fmt.Errorf("%s: %w", class, ErrNoOptimizer)
		}
		err = d.each(ctx, class, items, sink, &res, d.Documents.Compress)
	default:
		return res, fmt.Errorf("unknown media class %v", class)
	}

	return res, err
}

func (d *Dispatcher) images(ctx context.Context, items []types.WorkItem, sink Sink, res *Result) error {
	if d.Images == nil {
		return fmt.Errorf("%s: %w", types.Image, ErrNoOptimizer)
	}
	log := d.logger()

	batches := batch.Partition(items, d.BatchSize)
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}

		paths := make([]string, len(b))
		for j, item := range b {
			paths[j] = item.Path
		}

		log.Debug("optimizing batch", "class", types.Image, "batch", i+1, "of", len(batches), "files", len(b))
		res.Invocations++
		if err := d.Images.OptimizeImages(ctx, paths); err != nil {
			return fmt.Errorf("%s batch %d starting at %s: %w", types.Image, i+1, paths[0], err)
		}

		for _, item := range b {
			if err := d.complete(types.Image, item, sink, res); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Dispatcher) each(ctx context.Context, class types.MediaClass, items []types.WorkItem, sink Sink, res *Result, process func(context.Context, string) error) error {
	log := d.logger()

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Debug("optimizing file", "class", class, "file", i+1, "of", len(items), "path", item.Path)
		res.Invocations++
		if err := process(ctx, item.Path); err != nil {
			return fmt.Errorf("%s %s: %w", class, item.Path, err)
		}
		if err := d.complete(class, item, sink, res); err != nil {
			return err
		}
	}
	return nil
}

// complete re-fingerprints a processed file and records it. The identity
// is always appended before the reduction record.
func (d *Dispatcher) complete(class types.MediaClass, item types.WorkItem, sink Sink, res *Result) error {
	after, err := d.Hasher.Fingerprint(item.Path)
	if err != nil {
		return fmt.Errorf("%s %s: re-fingerprinting: %w", class, item.Path, err)
	}

	if err := d.Store.Append(class, after.Identity); err != nil {
		return fmt.Errorf("%s %s: %w", class, item.Path, err)
	}

	saved := res.record(item, after)
	if saved > 0 {
		rec := types.ReductionRecord{Identity: after.Identity, BytesSaved: uint64(saved)}
		if err := d.Store.AppendReduction(class, rec); err != nil {
			return fmt.Errorf("%s %s: %w", class, item.Path, err)
		}
	}

	d.logger().Debug("recorded file", "class", class, "path", item.Path, "before", item.OriginalSize, "after", after.Size, "saved", saved)
	sink.Completed()
	return nil
}

func (d *Dispatcher) logger() *logging.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logging.Get("dispatch")
}
