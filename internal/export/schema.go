package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/matcert-extractor/constants"
)

// RecordsJSONSchema returns the JSON-Schema of a JSON export as a generic map.
// It encodes the record invariants: known element symbols, max_value only on
// ranges, and no value only on balance.
func RecordsJSONSchema() map[string]any {
	symbols := make([]string, 0)
	for s := range constants.ElementTable() {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	nullableNumber := map[string]any{"type": []string{"number", "null"}}
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"element_symbol": map[string]any{"type": "string", "enum": symbols},
			"element_name":   map[string]any{"type": "string", "minLength": 1},
			"value":          nullableNumber,
			"max_value":      nullableNumber,
			"unit":           map[string]any{"type": "string"},
			"value_type": map[string]any{"type": "string", "enum": []string{
				string(constants.ValueExact),
				string(constants.ValueRange),
				string(constants.ValueMax),
				string(constants.ValueLessThan),
				string(constants.ValueBalance),
			}},
			"sample_position": map[string]any{"type": "string", "enum": []string{
				string(constants.PositionActual),
				string(constants.PositionTop),
				string(constants.PositionBottom),
				string(constants.PositionRequirement),
			}},
			"alloy":   map[string]any{"type": "string"},
			"heat_no": map[string]any{"type": "string"},
		},
		"required": []string{"element_symbol", "element_name", "value", "max_value", "unit", "value_type", "sample_position"},
		"allOf": []any{
			ifType(string(constants.ValueRange), "max_value"),
			ifNotType(string(constants.ValueBalance), "value"),
		},
	}
	return map[string]any{
		"type":  "array",
		"items": item,
	}
}

// ifType makes field a number when value_type is kind and null otherwise.
func ifType(kind, field string) map[string]any {
	return map[string]any{
		"if":   map[string]any{"properties": map[string]any{"value_type": map[string]any{"const": kind}}},
		"then": map[string]any{"properties": map[string]any{field: map[string]any{"type": "number"}}},
		"else": map[string]any{"properties": map[string]any{field: map[string]any{"type": "null"}}},
	}
}

// ifNotType makes field null when value_type is kind and a number otherwise.
func ifNotType(kind, field string) map[string]any {
	return map[string]any{
		"if":   map[string]any{"properties": map[string]any{"value_type": map[string]any{"const": kind}}},
		"then": map[string]any{"properties": map[string]any{field: map[string]any{"type": "null"}}},
		"else": map[string]any{"properties": map[string]any{field: map[string]any{"type": "number"}}},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
