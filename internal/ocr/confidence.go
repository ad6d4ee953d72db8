package ocr

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/matcert-extractor/constants"
)

var (
	reTableLine = regexp.MustCompile(`(?m)^.*\|.*\|.*$`)
	reDecimal   = regexp.MustCompile(`\b\d+[.,]\d+\b`)
	reHeatNo    = regexp.MustCompile(`(?i)\bheat\b`)
)

// heuristicConfidence scores how much the text looks like a certificate with
// a composition table. It is a coarse 0..1 signal for logs and run records.
func heuristicConfidence(txt string) float32 {
	score := float32(0.1)
	if reTableLine.MatchString(txt) {
		score += 0.3
	}
	if countElementTokens(txt) >= 3 {
		score += 0.3
	}
	if reDecimal.MatchString(txt) {
		score += 0.15
	}
	if reHeatNo.MatchString(txt) {
		score += 0.1
	}
	if len(txt) > 200 {
		score += 0.05
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func countElementTokens(txt string) int {
	seen := map[string]bool{}
	for _, f := range strings.FieldsFunc(txt, func(r rune) bool {
		return r == '|' || r == ' ' || r == '\n'
	}) {
		s := strings.ToUpper(f)
		if constants.IsElement(s) {
			seen[s] = true
		}
	}
	return len(seen)
}
