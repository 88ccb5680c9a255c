package optimizer

import (
	"context"
	"strconv"
)

// DocumentOptions configures Ghostscript.
type DocumentOptions struct {
	Command       string
	Resolution    int
	Compatibility string
	ExtraArgs     []string
}

// BuildDocumentArgs returns the gs arguments that rewrite src into dst
// with images downsampled to opts.Resolution DPI.
func BuildDocumentArgs(opts DocumentOptions, src, dst string) []string {
	res := strconv.Itoa(opts.Resolution)
	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=" + opts.Compatibility,
		"-dNOPAUSE", "-dBATCH", "-dQUIET", "-dSAFER",
		"-dDownsampleColorImages=true", "-dColorImageResolution=" + res,
		"-dDownsampleGrayImages=true", "-dGrayImageResolution=" + res,
		"-dDownsampleMonoImages=true", "-dMonoImageResolution=" + res,
		"-dSubsetFonts=true", "-dEmbedAllFonts=false",
	}
	args = append(args, opts.ExtraArgs...)
	return append(args, "-sOutputFile="+dst, src)
}

// Ghostscript compresses PDFs one file at a time.
type Ghostscript struct {
	Exec    *Exec
	Options DocumentOptions
}

// NewGhostscript returns a Ghostscript using exec.
func NewGhostscript(exec *Exec, opts DocumentOptions) *Ghostscript {
	if opts.Command == "" {
		opts.Command = "gs"
	}
	if opts.Resolution <= 0 {
		opts.Resolution = 72
	}
	if opts.Compatibility == "" {
		opts.Compatibility = "1.4"
	}
	return &Ghostscript{Exec: exec, Options: opts}
}

// Compress rewrites path through a temp sibling.
func (g *Ghostscript) Compress(ctx context.Context, path string) error {
	return replaceVia(ctx, path, func(ctx context.Context, tmp string) error {
		return g.Exec.Run(ctx, g.Options.Command, BuildDocumentArgs(g.Options, path, tmp)...)
	})
}
