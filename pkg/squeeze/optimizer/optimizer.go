// Package optimizer drives the external tools that shrink media files in
// place: image_optim for images, ffmpeg for video and Ghostscript for PDFs.
//
// Each tool is hidden behind a small interface so the dispatcher can be
// tested with fakes. The exec-backed implementations share Exec, which
// enforces a per-invocation timeout and turns failures into
// *InvocationError values.
package optimizer

import "context"

// ImageOptimizer optimizes a batch of image files in place.
type ImageOptimizer interface {
	OptimizeImages(ctx context.Context, paths []string) error
}

// VideoTranscoder re-encodes a video file, replacing it.
type VideoTranscoder interface {
	Transcode(ctx context.Context, path string) error
}

// DocumentCompressor rewrites a document with a smaller encoding,
// replacing it.
type DocumentCompressor interface {
	Compress(ctx context.Context, path string) error
}

// ImageFunc adapts a function to ImageOptimizer.
type ImageFunc func(ctx context.Context, paths []string) error

// OptimizeImages calls f.
func (f ImageFunc) OptimizeImages(ctx context.Context, paths []string) error {
	return f(ctx, paths)
}

// FileFunc adapts a function to VideoTranscoder and DocumentCompressor.
type FileFunc func(ctx context.Context, path string) error

// Transcode calls f.
func (f FileFunc) Transcode(ctx context.Context, path string) error {
	return f(ctx, path)
}

// Compress calls f.
func (f FileFunc) Compress(ctx context.Context, path string) error {
	return f(ctx, path)
}
