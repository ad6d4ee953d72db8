package composition

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/matcert-extractor/constants"
)

var reDecimalComma = regexp.MustCompile(`(\d),(\d)`)

// valueRule is one entry of the cell grammar. Rules are evaluated in order and
// the first rule whose pattern matches decides the result.
type valueRule struct {
	kind    constants.ValueType
	pattern *regexp.Regexp
	// hasMax is set when the second capture group is the upper bound.
	hasMax bool
}

const number = `(\d+\.?\d*)`

var valueRules = []valueRule{
	{kind: constants.ValueRange, pattern: regexp.MustCompile(number + `\s*[-–]\s*` + number), hasMax: true},
	{kind: constants.ValueMax, pattern: regexp.MustCompile(`(?i)max\s*[:\s]*` + number)},
	{kind: constants.ValueLessThan, pattern: regexp.MustCompile(`[<≤]\s*` + number)},
	{kind: constants.ValueExact, pattern: regexp.MustCompile(number)},
}

// Parsed is the interpretation of a single cell.
type Parsed struct {
	Value *float64
	Max   *float64
	Type  constants.ValueType
}

// Found reports whether the cell carried a numeric value.
func (p Parsed) Found() bool { return p.Value != nil }

// ParseValue interprets one table cell. A comma between two digits is read as a
// decimal point before matching. Cells without a number, or whose number does
// not parse, return a zero Parsed.
func ParseValue(cell string) Parsed {
	text := strings.TrimSpace(cell)
	if text == "" {
		return Parsed{}
	}
	text = reDecimalComma.ReplaceAllString(text, "$1.$2")

	for _, rule := range valueRules {
		m := rule.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, ok := ParseGermanFloat(m[1])
		if !ok {
			return Parsed{}
		}
		out := Parsed{Value: &v, Type: rule.kind}
		if rule.hasMax {
			hi, ok := ParseGermanFloat(m[2])
			if !ok {
				return Parsed{}
			}
			out.Max = &hi
		}
		return out
	}
	return Parsed{}
}

// ParseGermanFloat parses a numeric literal written with either European or
// English decimal conventions. Spaces are ignored. With both '.' and ',' the
// dots are thousands separators; a lone ',' is the decimal point.
func ParseGermanFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return 0, false
	}
	switch {
	case strings.Contains(s, ".") && strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
