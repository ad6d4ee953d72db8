package composition

import "github.com/joseph-ayodele/matcert-extractor/constants"

// Result is the outcome of one extraction.
type Result struct {
	Records  []Record
	Metadata Metadata
	Table    Table
	// Balance is set when the synthetic balance record was appended.
	Balance bool
}

// Empty reports whether no record was produced.
func (r Result) Empty() bool { return len(r.Records) == 0 }

// Extract parses OCR text into sorted composition records.
func Extract(text string, cfg Config) Result {
	cfg = cfg.withDefaults()

	res := Result{
		Table:    ExtractTable(text, cfg),
		Metadata: ExtractMetadata(text, cfg),
	}
	for _, row := range res.Table.Rows {
		offset := 0
		if cfg.AlignLabelColumn {
			offset = labelOffset(row, res.Table)
		}
		res.Records = append(res.Records, assembleRow(row, res.Table.Columns, offset, cfg)...)
	}
	if cfg.BalancePattern.MatchString(text) {
		res.Records = append(res.Records, Record{
			ElementSymbol:  cfg.BalanceElement,
			ElementName:    cfg.elementName(cfg.BalanceElement),
			Unit:           cfg.Unit,
			ValueType:      constants.ValueBalance,
			SamplePosition: constants.PositionActual,
		})
		res.Balance = true
	}

	res.Metadata.Apply(res.Records)
	SortRecords(res.Records)
	return res
}

// labelOffset returns 1 when the header starts directly with an element
// column while a longer data row starts with a label: the header's empty
// top-left cell was dropped and the row must be read one cell to the right.
func labelOffset(row Row, t Table) int {
	if len(row) <= len(t.Header) || len(t.Columns) == 0 || t.Columns[0].Index != 0 {
		return 0
	}
	if ParseValue(row[0]).Found() {
		return 0
	}
	return 1
}

func assembleRow(row Row, cols []Column, offset int, cfg Config) []Record {
	pos := ClassifyRow(row)
	var out []Record
	for _, col := range cols {
		idx := col.Index + offset
		if idx >= len(row) {
			continue
		}
		p := ParseValue(row[idx])
		if !p.Found() {
			continue
		}
		out = append(out, Record{
			ElementSymbol:  col.Symbol,
			ElementName:    cfg.elementName(col.Symbol),
			Value:          p.Value,
			MaxValue:       p.Max,
			Unit:           cfg.Unit,
			ValueType:      p.Type,
			SamplePosition: pos,
		})
	}
	return out
}
