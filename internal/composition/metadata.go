package composition

import "strings"

// ExtractMetadata pulls the alloy designation and heat number from free text.
// Unmatched fields stay empty.
func ExtractMetadata(text string, cfg Config) Metadata {
	cfg = cfg.withDefaults()
	var md Metadata
	for _, re := range cfg.AlloyPatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			md.Alloy = strings.ToUpper(m[1])
			break
		}
	}
	if m := cfg.HeatPattern.FindStringSubmatch(text); len(m) > 1 {
		md.HeatNo = m[1]
	}
	return md
}
