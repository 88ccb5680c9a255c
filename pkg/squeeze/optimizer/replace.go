package optimizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TempSuffix marks the hidden sibling a tool writes before it replaces
// the original.
const TempSuffix = ".squeeze-tmp"

// TempPath returns the hidden sibling path for src, keeping its extension
// so tools infer the output format.
func TempPath(src string) string {
	dir, name := filepath.Split(src)
	ext := filepath.Ext(name)
	return filepath.Join(dir, "."+strings.TrimSuffix(name, ext)+TempSuffix+ext)
}

// replaceVia runs write to produce a temp sibling of src, then renames it
// over src. The temp file is removed if anything fails.
func replaceVia(ctx context.Context, src string, write func(ctx context.Context, tmp string) error) error {
	tmp := TempPath(src)
	_ = os.Remove(tmp)

	if err := write(ctx, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	info, err := os.Stat(tmp)
	if err != nil {
		return fmt.Errorf("optimizer produced no output for %s: %w", src, err)
	}
	if info.Size() == 0 {
		_ = os.Remove(tmp)
		return fmt.Errorf("optimizer produced an empty file for %s", src)
	}

	if err := os.Rename(tmp, src); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", src, err)
	}
	return nil
}
