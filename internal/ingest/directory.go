package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ScanDirectory walks root and returns the files whose extension is in
// includeExts (or the defaults) in lexical order. Hidden entries are skipped
// when skipHidden is set; unreadable entries are counted as failed and the
// walk continues.
func ScanDirectory(root string, includeExts []string, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}
	exts := extSet(includeExts)

	var paths []string
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !allowed(path, exts) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, fmt.Errorf("walk: %w", err)
	}
	return paths, stats, nil
}
