package optimizer

import (
	"context"
	"strconv"
)

// ImageOptions configures image_optim.
type ImageOptions struct {
	// Command is the image_optim executable.
	Command string

	// Lossy enables lossy workers.
	Lossy bool

	// Quality caps JPEG quality when Lossy is set.
	Quality int

	// StripMetadata removes EXIF and other metadata.
	StripMetadata bool

	// ExtraArgs are appended before the paths.
	ExtraArgs []string
}

// keepMetadataArgs turns off metadata stripping in every image_optim
// worker that strips by default.
var keepMetadataArgs = []string{
	"--jpegoptim-strip", "none",
	"--jpegtran-copy-chunks",
	"--no-optipng-strip",
	"--no-oxipng-strip",
}

// BuildImageArgs returns the image_optim arguments for one batch.
func BuildImageArgs(opts ImageOptions, paths []string) []string {
	args := []string{"--no-progress", "--skip-missing-workers"}

	if opts.Lossy {
		args = append(args, "--allow-lossy")
		if opts.Quality > 0 {
			q := strconv.Itoa(opts.Quality)
			args = append(args,
				"--jpegoptim-max-quality", q,
				"--jpegrecompress-quality", strconv.Itoa(recompressQuality(opts.Quality)),
			)
		}
	}
	if !opts.StripMetadata {
		args = append(args, keepMetadataArgs...)
	}

	args = append(args, opts.ExtraArgs...)
	return append(args, paths...)
}

// recompressQuality maps a 0-100 quality to jpeg-recompress's 0-3 scale.
func recompressQuality(q int) int {
	switch {
	case q >= 90:
		return 3
	case q >= 80:
		return 2
	case q >= 60:
		return 1
	default:
		return 0
	}
}

// ImageOptim optimizes images with one image_optim invocation per batch.
type ImageOptim struct {
	Exec    *Exec
	Options ImageOptions
}

// NewImageOptim returns an ImageOptim using exec.
func NewImageOptim(exec *Exec, opts ImageOptions) *ImageOptim {
	if opts.Command == "" {
		opts.Command = "image_optim"
	}
	return &ImageOptim{Exec: exec, Options: opts}
}

// OptimizeImages runs image_optim over paths.
func (o *ImageOptim) OptimizeImages(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return o.Exec.Run(ctx, o.Options.Command, BuildImageArgs(o.Options, paths)...)
}
