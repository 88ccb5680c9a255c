package optimizer

import (
	"context"
	"fmt"
	"strconv"
)

// VideoOptions configures ffmpeg.
type VideoOptions struct {
	Command   string
	Codec     string
	CRF       int
	Preset    string
	MaxHeight int
	ExtraArgs []string
}

// BuildVideoArgs returns the ffmpeg arguments that transcode src into dst.
// All streams are kept; audio and subtitles are copied.
func BuildVideoArgs(opts VideoOptions, src, dst string) []string {
	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-map", "0",
		"-c:v", opts.Codec,
		"-crf", strconv.Itoa(opts.CRF),
		"-preset", opts.Preset,
	}
	if opts.MaxHeight > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", opts.MaxHeight))
	}
	args = append(args, "-c:a", "copy", "-c:s", "copy")
	if opts.Codec == "libx265" {
		args = append(args, "-tag:v", "hvc1")
	}
	args = append(args, opts.ExtraArgs...)
	return append(args, dst)
}

// FFmpeg transcodes videos one file at a time.
type FFmpeg struct {
	Exec    *Exec
	Options VideoOptions
}

// NewFFmpeg returns an FFmpeg using exec.
func NewFFmpeg(exec *Exec, opts VideoOptions) *FFmpeg {
	if opts.Command == "" {
		opts.Command = "ffmpeg"
	}
	return &FFmpeg{Exec: exec, Options: opts}
}

// Transcode re-encodes path into a temp sibling and renames it over path.
// The original is not kept.
func (f *FFmpeg) Transcode(ctx context.Context, path string) error {
	return replaceVia(ctx, path, func(ctx context.Context, tmp string) error {
		return f.Exec.Run(ctx, f.Options.Command, BuildVideoArgs(f.Options, path, tmp)...)
	})
}
