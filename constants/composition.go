package constants

// UnitWeightPercent is the unit attached to every composition record.
const UnitWeightPercent = "wt.%"

// ValueType classifies how a measurement is written in a cell.
type ValueType string

const (
	ValueNone     ValueType = ""
	ValueExact    ValueType = "exact"
	ValueRange    ValueType = "range"
	ValueMax      ValueType = "max"
	ValueLessThan ValueType = "less_than"
	ValueBalance  ValueType = "balance"
)

// SamplePosition is the sampling location or requirement tier of a table row.
type SamplePosition string

const (
	PositionActual      SamplePosition = "actual"
	PositionTop         SamplePosition = "top"
	PositionBottom      SamplePosition = "bottom"
	PositionRequirement SamplePosition = "requirement"
)
