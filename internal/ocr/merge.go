package ocr

import (
	"fmt"
	"strings"
)

var pageRule = strings.Repeat("=", 50)

// PageBanner is the separator written before the text of page n.
func PageBanner(n int) string {
	return fmt.Sprintf("\n%s\nPAGE %d\n%s\n", pageRule, n, pageRule)
}

// MergePages joins per-page texts into one document, each page preceded by
// its banner. Pages are numbered from 1 in slice order.
func MergePages(pages []string) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = PageBanner(i+1) + p
	}
	return strings.Join(parts, "\n")
}
