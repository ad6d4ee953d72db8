package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/matcert-extractor/constants"
)

// AllowedExt checks if a file extension is in the allowed set (defaults to pdf/jpg/jpeg/png).
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// extSet lowercases includeExts into a lookup set; empty input means the
// default extensions.
func extSet(includeExts []string) map[string]struct{} {
	if len(includeExts) == 0 {
		return constants.AllowedExtensions
	}
	exts := map[string]struct{}{}
	for _, e := range includeExts {
		if e = constants.NormalizeExt(e); e != "" {
			exts[e] = struct{}{}
		}
	}
	return exts
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
