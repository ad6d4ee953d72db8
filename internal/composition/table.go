package composition

import (
	"regexp"
	"strings"
)

var reSeparatorLine = regexp.MustCompile(`^[|\s\-:]+$`)

// Row is the non-empty, trimmed cells of one pipe-delimited line.
type Row []string

// Column maps a header cell position to its element symbol.
type Column struct {
	Index  int
	Symbol string
}

// Table is the composition table found in a document.
type Table struct {
	// Found is false when no row qualified as a header.
	Found bool
	// Header is the header row itself.
	Header Row
	// Columns lists the element columns of the header in column order.
	// Duplicate symbols keep both columns.
	Columns []Column
	// Rows are the data rows after the header, repeated headers excluded.
	Rows []Row
	// RepeatedHeaders counts rows skipped because they looked like a header.
	RepeatedHeaders int
}

// Mapping returns the header mapping as column index -> element symbol.
func (t Table) Mapping() map[int]string {
	m := make(map[int]string, len(t.Columns))
	for _, c := range t.Columns {
		m[c.Index] = c.Symbol
	}
	return m
}

// SplitRows returns every table line of text as a Row. A table line contains a
// pipe and is not a pure separator line; lines whose cells are all empty are
// dropped.
func SplitRows(text string) []Row {
	var rows []Row
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "|") {
			continue
		}
		if reSeparatorLine.MatchString(strings.TrimSpace(line)) {
			continue
		}
		var cells Row
		for _, c := range strings.Split(line, "|") {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows
}

// ExtractTable locates the composition header and the data rows following it.
func ExtractTable(text string, cfg Config) Table {
	cfg = cfg.withDefaults()
	rows := SplitRows(text)

	headerIdx := -1
	for i, row := range rows {
		if cfg.isHeader(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return Table{}
	}

	t := Table{Found: true, Header: rows[headerIdx]}
	for j, cell := range t.Header {
		if sym, ok := cfg.symbol(cell); ok {
			t.Columns = append(t.Columns, Column{Index: j, Symbol: sym})
		}
	}
	for _, row := range rows[headerIdx+1:] {
		if cfg.SkipRepeatedHeaders && cfg.isHeader(row) {
			t.RepeatedHeaders++
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (c Config) symbol(cell string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(cell))
	_, ok := c.Elements[s]
	return s, ok
}

func (c Config) isHeader(row Row) bool {
	n := 0
	for _, cell := range row {
		if _, ok := c.symbol(cell); ok {
			n++
		}
	}
	return n >= c.HeaderMinElements
}
