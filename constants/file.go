package constants

import "strings"

// Source formats stored on extraction runs.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	TXT   = "TXT"
)

// FileTypes holds the allowed source formats for an extraction run.
var FileTypes = []string{PDF, IMAGE, TXT}

// AllowedExtensions holds the default file extensions picked up by directory scans.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat maps an extension (with or without dot) to a source format.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "png", "jpg", "jpeg":
		return IMAGE
	case "txt", "md":
		return TXT
	}
	return ""
}

// IsAllowedExt reports whether ext is in AllowedExtensions.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
