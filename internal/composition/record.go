package composition

import (
	"sort"

	"github.com/joseph-ayodele/matcert-extractor/constants"
)

// Record is one element measurement from one table row.
type Record struct {
	ElementSymbol  string                   `json:"element_symbol"`
	ElementName    string                   `json:"element_name"`
	Value          *float64                 `json:"value"`
	MaxValue       *float64                 `json:"max_value"`
	Unit           string                   `json:"unit"`
	ValueType      constants.ValueType      `json:"value_type"`
	SamplePosition constants.SamplePosition `json:"sample_position"`
	Alloy          string                   `json:"alloy,omitempty"`
	HeatNo         string                   `json:"heat_no,omitempty"`
}

// Metadata holds document-level fields merged into every record.
type Metadata struct {
	Alloy  string `json:"alloy,omitempty"`
	HeatNo string `json:"heat_no,omitempty"`
}

// Apply copies the metadata onto every record.
func (m Metadata) Apply(recs []Record) {
	for i := range recs {
		recs[i].Alloy = m.Alloy
		recs[i].HeatNo = m.HeatNo
	}
}

// SortRecords orders records by element symbol, then sample position. The sort
// is stable, so rows keep their table order within one (element, position).
func SortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].ElementSymbol != recs[j].ElementSymbol {
			return recs[i].ElementSymbol < recs[j].ElementSymbol
		}
		return recs[i].SamplePosition < recs[j].SamplePosition
	})
}
