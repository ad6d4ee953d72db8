// Package composition turns raw OCR text of a material certificate into
// normalized chemical-composition records.
//
// The package is pure: no I/O, no logging, no shared mutable state. Missing
// tables, unparseable cells and unmatched metadata all surface as empty
// results, never as errors.
package composition

import (
	"regexp"

	"github.com/joseph-ayodele/matcert-extractor/constants"
)

const (
	// DefaultHeaderMinElements is the number of recognized element cells a row
	// needs before it is treated as the table header.
	DefaultHeaderMinElements = 3
)

// Config drives a single extraction. Treat it as immutable once built; Extract
// never writes to it. Build it from DefaultConfig: nil and zero numeric fields
// are defaulted, booleans are taken as given.
type Config struct {
	// Elements maps uppercase element symbols to their names. Only these
	// symbols are recognized in header rows.
	Elements map[string]string

	// HeaderMinElements is the minimum count of element cells that makes a row
	// a header row.
	HeaderMinElements int

	// SkipRepeatedHeaders drops rows after the header that qualify as headers
	// themselves (tables continued across pages repeat their header).
	SkipRepeatedHeaders bool

	// AlignLabelColumn reads a data row one cell to the right when the header
	// starts with an element column but the (longer) row starts with a label.
	// Empty cells are dropped, so a blank top-left header cell otherwise puts
	// every value under the element to its left. Off means header indices are
	// used verbatim.
	AlignLabelColumn bool

	// Unit is attached to every record.
	Unit string

	// AlloyPatterns are tried in order; the first capture group of the first
	// match is uppercased into Record.Alloy.
	AlloyPatterns []*regexp.Regexp

	// HeatPattern captures the heat number in its first group.
	HeatPattern *regexp.Regexp

	// BalancePattern triggers the synthetic balance record for BalanceElement.
	BalancePattern *regexp.Regexp
	BalanceElement string
}

var (
	defaultAlloyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(Ti-6Al-4V|TI-6AL-4V)`),
	}
	defaultHeatPattern    = regexp.MustCompile(`(?i)Heat\s*(?:№|No\.?)[:\s]*([0-9\-]+)`)
	defaultBalancePattern = regexp.MustCompile(`(?i)ti[-\s]?remainder`)
)

// DefaultConfig returns the configuration used for titanium mill certificates.
func DefaultConfig() Config {
	return Config{
		Elements:            constants.ElementTable(),
		HeaderMinElements:   DefaultHeaderMinElements,
		SkipRepeatedHeaders: true,
		AlignLabelColumn:    true,
		Unit:                constants.UnitWeightPercent,
		AlloyPatterns:       defaultAlloyPatterns,
		HeatPattern:         defaultHeatPattern,
		BalancePattern:      defaultBalancePattern,
		BalanceElement:      "TI",
	}
}

// withDefaults fills zero fields so a partially built Config behaves like
// DefaultConfig for everything the caller left out.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Elements == nil {
		c.Elements = d.Elements
	}
	if c.HeaderMinElements <= 0 {
		c.HeaderMinElements = d.HeaderMinElements
	}
	if c.Unit == "" {
		c.Unit = d.Unit
	}
	if c.AlloyPatterns == nil {
		c.AlloyPatterns = d.AlloyPatterns
	}
	if c.HeatPattern == nil {
		c.HeatPattern = d.HeatPattern
	}
	if c.BalancePattern == nil {
		c.BalancePattern = d.BalancePattern
	}
	if c.BalanceElement == "" {
		c.BalanceElement = d.BalanceElement
	}
	return c
}

func (c Config) elementName(symbol string) string {
	if name, ok := c.Elements[symbol]; ok {
		return name
	}
	return symbol
}
