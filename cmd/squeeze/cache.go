package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/squeeze/pkg/squeeze/hashcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the content hash cache",
	Long: `Commands for managing the squeeze hash cache.

The cache remembers the SHA-256 of files by path, size and modification time
so unchanged files are not re-read on every run. It never affects which files
are processed; that is decided by the manifest alone. Cache data is stored in
the XDG cache directory (typically ~/.cache/squeeze/hashes).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [path]",
	Short: "Clear cached hashes",
	Long:  `Removes cached hashes under path, or every cached hash when no path is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats [path]",
	Short: "Show cache statistics",
	Long:  `Displays the cache location, its size on disk and the number of entries under path.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheStats,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := cfg.HashCachePath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// cacheScope returns the absolute path prefix named by args, or "" for all.
func cacheScope(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	return absPath(args[0])
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cachePath, err := cfg.HashCachePath()
	if err != nil {
		return err
	}
	scope, err := cacheScope(args)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if _, err := os.Stat(cachePath); os.IsNotExist(err) {
		fmt.Fprintln(w, "Cache is already empty.")
		return nil
	}

	cache, err := hashcache.Open(cachePath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() { _ = cache.Close() }()

	if err := cache.Clear(scope); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	if scope == "" {
		fmt.Fprintln(w, "Cache cleared.")
	} else {
		fmt.Fprintf(w, "Cache cleared for %s.\n", scope)
	}
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cachePath, err := cfg.HashCachePath()
	if err != nil {
		return err
	}
	scope, err := cacheScope(args)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Cache location: %s\n", cachePath)

	info, err := os.Stat(cachePath)
	if os.IsNotExist(err) {
		fmt.Fprintln(w, "Cache: empty (no cache directory)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat cache: %w", err)
	}

	size, err := dirSize(cachePath)
	if err != nil {
		return fmt.Errorf("failed to calculate cache size: %w", err)
	}

	cache, err := hashcache.Open(cachePath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() { _ = cache.Close() }()

	count, err := cache.Count(scope)
	if err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}

	fmt.Fprintf(w, "Cache size: %s\n", humanize.IBytes(uint64(size)))
	if scope == "" {
		fmt.Fprintf(w, "Entries: %s\n", humanize.Comma(int64(count)))
	} else {
		fmt.Fprintf(w, "Entries under %s: %s\n", scope, humanize.Comma(int64(count)))
	}
	fmt.Fprintf(w, "Last modified: %s (%s)\n", info.ModTime().Format("2006-01-02 15:04:05"), humanize.Time(info.ModTime()))
	return nil
}

func dirSize(root string) (int64, error) {
	var size int64
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
