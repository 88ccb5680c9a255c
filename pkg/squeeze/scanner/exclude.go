package scanner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

type pattern struct {
	raw  string
	glob glob.Glob
}

// excluder matches paths against exclusion globs and hides dot entries.
type excluder struct {
	patterns []pattern
}

func newExcluder(patterns []string) (*excluder, error) {
	e := &excluder{}
	for _, raw := range patterns {
		if raw == "" {
			continue
		}
		g, err := glob.Compile(raw, filepath.Separator)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", raw, err)
		}
		e.patterns = append(e.patterns, pattern{raw: raw, glob: g})
	}
	return e, nil
}

// isHidden reports whether a path component is hidden.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// excluded checks a path and its basename against the exclusion rules.
func (e *excluder) excluded(path, name string) bool {
	if isHidden(name) {
		return true
	}

	for _, p := range e.patterns {
		if path == p.raw || strings.HasPrefix(path, p.raw+string(filepath.Separator)) {
			return true
		}
		if p.glob.Match(name) || p.glob.Match(path) {
			return true
		}
	}
	return false
}

// representable reports whether a name can be stored in a line-oriented log.
func representable(name string) bool {
	return !strings.ContainsAny(name, "\n\r")
}
