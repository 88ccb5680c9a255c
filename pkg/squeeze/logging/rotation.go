package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig configures log file rotation behavior.
type RotationConfig struct {
	// MaxSize is the maximum size in bytes before rotation.
	// Zero uses the default of 10MB. Values are rounded up to whole megabytes.
	MaxSize int64

	// MaxAge is the maximum number of days to retain old log files.
	// Zero means no age-based cleanup.
	MaxAge int

	// MaxBackups is the maximum number of old log files to keep.
	// Zero means keep all old files (subject to MaxAge).
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool
}

// DefaultRotationConfig returns sensible defaults for rotation.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 * 1024 * 1024,
		MaxAge:     30,
		MaxBackups: 5,
		Compress:   true,
	}
}

const megabyte = 1024 * 1024

// megabytes converts a byte count to lumberjack's whole-megabyte unit.
func (c RotationConfig) megabytes() int {
	size := c.MaxSize
	if size <= 0 {
		size = DefaultRotationConfig().MaxSize
	}
	mb := int((size + megabyte - 1) / megabyte)
	if mb < 1 {
		mb = 1
	}
	return mb
}

// newRotatingWriter creates the parent directory and returns a lumberjack
// writer for path.
func newRotatingWriter(path string, cfg RotationConfig) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.megabytes(),
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}, nil
}
