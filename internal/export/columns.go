package export

import (
	"sort"
	"strconv"

	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
)

// Columns is the fixed output column order shared by every format.
var Columns = []string{
	"element_symbol",
	"element_name",
	"value",
	"max_value",
	"unit",
	"value_type",
	"sample_position",
	"alloy",
	"heat_no",
}

// cells renders one record in column order. Missing values are empty.
func cells(r composition.Record) []string {
	return []string{
		r.ElementSymbol,
		r.ElementName,
		formatFloat(r.Value),
		formatFloat(r.MaxValue),
		r.Unit,
		string(r.ValueType),
		string(r.SamplePosition),
		r.Alloy,
		r.HeatNo,
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// RecordSummary is what the CLI reports after an export.
type RecordSummary struct {
	Entries  int
	Elements []string
}

// Summary counts records and lists the distinct elements in sorted order.
func Summary(recs []composition.Record) RecordSummary {
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		seen[r.ElementSymbol] = struct{}{}
	}
	elems := make([]string, 0, len(seen))
	for s := range seen {
		elems = append(elems, s)
	}
	sort.Strings(elems)
	return RecordSummary{Entries: len(recs), Elements: elems}
}
