// Package config provides configuration management for squeeze.
package config

import "time"

// Default configuration values for squeeze.
const (
	// DefaultPath is the default root to optimize when none is specified.
	DefaultPath = "."

	// DefaultBatchSize is the number of images handed to one optimizer call.
	DefaultBatchSize = 8

	// DefaultTimeout bounds a single external optimizer invocation.
	DefaultTimeout = 2 * time.Hour

	// DefaultDiffWorkers is the fan-out of the change detector.
	DefaultDiffWorkers = 8

	// DefaultManifestDir is the state directory created under the root.
	DefaultManifestDir = ".optim"

	// DefaultWatchDebounce is the quiet period before watch mode re-runs.
	DefaultWatchDebounce = 30 * time.Second

	// DefaultImageQuality is the lossy JPEG quality ceiling.
	DefaultImageQuality = 85

	// DefaultVideoCodec is the ffmpeg video encoder.
	DefaultVideoCodec = "libx265"

	// DefaultVideoCRF is the constant rate factor handed to the encoder.
	DefaultVideoCRF = 28

	// DefaultVideoPreset is the encoder speed/efficiency preset.
	DefaultVideoPreset = "medium"

	// DefaultVideoMaxHeight caps the output resolution. Zero keeps the source size.
	DefaultVideoMaxHeight = 1080

	// DefaultDocumentResolution is the image downsampling target in DPI.
	DefaultDocumentResolution = 72

	// DefaultDocumentCompatibility is the PDF compatibility level.
	DefaultDocumentCompatibility = "1.4"
)

// DefaultExclusions contains path component globs skipped in addition to
// hidden entries. They cover NAS and sync-client metadata directories.
var DefaultExclusions = []string{
	"@eaDir",
	"#recycle",
	"#snapshot",
	"$RECYCLE.BIN",
	"System Volume Information",
	"*.sync-conflict-*",
	"Icon?",
}
