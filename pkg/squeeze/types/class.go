package types

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// MediaClass identifies a family of files handled by one optimizer.
type MediaClass int

// Media classes in dispatch order.
const (
	Image MediaClass = iota
	Video
	Document
)

// String returns the on-disk name of the class, which is also the stem of
// its manifest files.
func (c MediaClass) String() string {
	switch c {
	case Image:
		return "image"
	case Video:
		return "video"
	case Document:
		return "doc"
	default:
		return fmt.Sprintf("MediaClass(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c MediaClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *MediaClass) UnmarshalText(text []byte) error {
	parsed, err := ParseMediaClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AllClasses returns every media class in dispatch order.
func AllClasses() []MediaClass {
	return []MediaClass{Image, Video, Document}
}

// ParseMediaClass parses a class name. It accepts "image", "video", "doc"
// and "document", case-insensitively.
func ParseMediaClass(s string) (MediaClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "images":
		return Image, nil
	case "video", "videos":
		return Video, nil
	case "doc", "docs", "document", "documents":
		return Document, nil
	default:
		return 0, fmt.Errorf("unknown media class %q", s)
	}
}

// ClassSpec selects the files belonging to a media class.
type ClassSpec struct {
	// Class is the media class described.
	Class MediaClass

	// Extensions is the allow-list of lowercase, dot-prefixed extensions.
	Extensions []string

	// MinSize is the minimum file size in bytes. Smaller files are ignored.
	MinSize int64
}

// DefaultClassSpec returns the default selection rules for a class.
func DefaultClassSpec(class MediaClass) ClassSpec {
	switch class {
	case Image:
		return ClassSpec{
			Class:      Image,
			Extensions: []string{".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp"},
			MinSize:    10 * KiB,
		}
	case Video:
		return ClassSpec{
			Class:      Video,
			Extensions: []string{".mp4", ".mov", ".m4v", ".mkv", ".avi", ".wmv", ".webm", ".mpg", ".mpeg"},
			MinSize:    MiB,
		}
	default:
		return ClassSpec{
			Class:      Document,
			Extensions: []string{".pdf"},
			MinSize:    50 * KiB,
		}
	}
}

// Matches reports whether name carries one of the allowed extensions.
func (s ClassSpec) Matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	return slices.Contains(s.Extensions, ext)
}

// NormalizeExtensions lowercases extensions and ensures a leading dot.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !slices.Contains(out, ext) {
			out = append(out, ext)
		}
	}
	return out
}
