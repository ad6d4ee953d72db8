package composition

import (
	"strings"

	"github.com/joseph-ayodele/matcert-extractor/constants"
)

// positionRules are checked in order against the uppercased first cell.
var positionRules = []struct {
	position constants.SamplePosition
	markers  []string
}{
	{constants.PositionTop, []string{"TOP"}},
	{constants.PositionBottom, []string{"BOTTOM"}},
	{constants.PositionRequirement, []string{"REQ", "MIN", "MAX", "SPEC"}},
}

// ClassifyRow infers the sample position of a data row from its first cell.
func ClassifyRow(row Row) constants.SamplePosition {
	if len(row) == 0 {
		return constants.PositionActual
	}
	first := strings.ToUpper(row[0])
	for _, r := range positionRules {
		for _, m := range r.markers {
			if strings.Contains(first, m) {
				return r.position
			}
		}
	}
	return constants.PositionActual
}
