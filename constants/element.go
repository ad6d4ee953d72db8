package constants

import "strings"

// elementNames is the fixed table of element symbols recognized in composition
// table headers, keyed by uppercase symbol.
var elementNames = map[string]string{
	"AL": "Aluminum",
	"V":  "Vanadium",
	"FE": "Iron",
	"C":  "Carbon",
	"N":  "Nitrogen",
	"O":  "Oxygen",
	"Y":  "Yttrium",
	"H":  "Hydrogen",
	"TI": "Titanium",
	"SI": "Silicon",
	"MN": "Manganese",
	"P":  "Phosphorus",
	"S":  "Sulfur",
	"CR": "Chromium",
	"MO": "Molybdenum",
	"NI": "Nickel",
	"CU": "Copper",
	"W":  "Tungsten",
	"CO": "Cobalt",
	"NB": "Niobium",
	"B":  "Boron",
	"SN": "Tin",
	"ZN": "Zinc",
	"PB": "Lead",
	"ZR": "Zirconium",
	"TA": "Tantalum",
	"HF": "Hafnium",
	"MG": "Magnesium",
	"CA": "Calcium",
}

// ElementTable returns a copy of the known element table (symbol -> name).
func ElementTable() map[string]string {
	out := make(map[string]string, len(elementNames))
	for k, v := range elementNames {
		out[k] = v
	}
	return out
}

// IsElement reports whether s (case-insensitive, trimmed) is a known symbol.
func IsElement(s string) bool {
	_, ok := elementNames[strings.ToUpper(strings.TrimSpace(s))]
	return ok
}
