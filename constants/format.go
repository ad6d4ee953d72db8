package constants

import (
	"strings"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
)

var allFormats = []ExportFormat{
	FormatCSV,
	FormatXLSX,
	FormatJSON,
}

func FormatsAsStringSlice() []string {
	result := make([]string, len(allFormats))
	for i, f := range allFormats {
		result[i] = string(f)
	}
	return result
}

// CanonicalizeFormat maps user input (flag value or file extension) to an export format.
// Unknown input falls back to CSV with ok=false.
func CanonicalizeFormat(input string) (ExportFormat, bool) {
	if input == "" {
		return FormatCSV, false
	}

	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(input), "."))

	// synonyms map
	synonyms := map[string]ExportFormat{
		"excel": FormatXLSX,
		"xls":   FormatXLSX,
		"txt":   FormatCSV,
	}

	if f, ok := synonyms[normalized]; ok {
		return f, true
	}

	for _, f := range allFormats {
		if normalized == string(f) {
			return f, true
		}
	}

	return FormatCSV, false
}
