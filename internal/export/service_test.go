package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
)

func f(v float64) *float64 { return &v }

func sampleRecords() []composition.Record {
	recs := []composition.Record{
		{ElementSymbol: "C", ElementName: "Carbon", Value: f(0.01), Unit: "wt.%", ValueType: constants.ValueExact, SamplePosition: constants.PositionActual},
		{ElementSymbol: "FE", ElementName: "Iron", Value: f(0.1), MaxValue: f(0.3), Unit: "wt.%", ValueType: constants.ValueRange, SamplePosition: constants.PositionRequirement},
		{ElementSymbol: "TI", ElementName: "Titanium", Unit: "wt.%", ValueType: constants.ValueBalance, SamplePosition: constants.PositionActual},
	}
	composition.Metadata{Alloy: "TI-6AL-4V", HeatNo: "12345"}.Apply(recs)
	return recs
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	want := strings.Join([]string{
		"element_symbol,element_name,value,max_value,unit,value_type,sample_position,alloy,heat_no",
		"C,Carbon,0.01,,wt.%,exact,actual,TI-6AL-4V,12345",
		"FE,Iron,0.1,0.3,wt.%,range,requirement,TI-6AL-4V,12345",
		"TI,Titanium,,,wt.%,balance,actual,TI-6AL-4V,12345",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(Columns, ",")+"\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRecords()))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Equal(t, "C", out[0]["element_symbol"])
	assert.Nil(t, out[0]["max_value"])
	assert.Equal(t, 0.3, out[1]["max_value"])
	assert.Nil(t, out[2]["value"])
	assert.Equal(t, "12345", out[2]["heat_no"])
}

func TestWriteJSONEmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteJSONRejectsBrokenInvariants(t *testing.T) {
	tests := []struct {
		name string
		rec  composition.Record
	}{
		{"range without max", composition.Record{ElementSymbol: "C", ElementName: "Carbon", Value: f(1), Unit: "wt.%", ValueType: constants.ValueRange, SamplePosition: constants.PositionActual}},
		{"max on exact", composition.Record{ElementSymbol: "C", ElementName: "Carbon", Value: f(1), MaxValue: f(2), Unit: "wt.%", ValueType: constants.ValueExact, SamplePosition: constants.PositionActual}},
		{"missing value", composition.Record{ElementSymbol: "C", ElementName: "Carbon", Unit: "wt.%", ValueType: constants.ValueExact, SamplePosition: constants.PositionActual}},
		{"unknown element", composition.Record{ElementSymbol: "XX", ElementName: "XX", Value: f(1), Unit: "wt.%", ValueType: constants.ValueExact, SamplePosition: constants.PositionActual}},
		{"bad position", composition.Record{ElementSymbol: "C", ElementName: "Carbon", Value: f(1), Unit: "wt.%", ValueType: constants.ValueExact, SamplePosition: "middle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := WriteJSON(&buf, []composition.Record{tt.rec})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "does not match schema")
			assert.Zero(t, buf.Len())
		})
	}
}

func TestWriteXLSX(t *testing.T) {
	b, err := WriteXLSX(sampleRecords())
	require.NoError(t, err)

	x, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer x.Close()

	assert.Equal(t, []string{SheetName}, x.GetSheetList())
	rows, err := x.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "C", rows[1][0])
	assert.Equal(t, "0.01", rows[1][2])
	assert.Equal(t, "0.3", rows[2][3])

	v, err := x.GetCellValue(SheetName, "C4")
	require.NoError(t, err)
	assert.Empty(t, v, "balance has no value")
	v, err = x.GetCellValue(SheetName, "I4")
	require.NoError(t, err)
	assert.Equal(t, "12345", v)
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := NewService(nil)
	for _, format := range []constants.ExportFormat{constants.FormatCSV, constants.FormatXLSX, constants.FormatJSON} {
		path := filepath.Join(dir, "c."+string(format))
		require.NoError(t, s.WriteFile(context.Background(), path, format, sampleRecords()))
		assert.FileExists(t, path)
		assert.NoFileExists(t, path+".part")
	}

	err := s.WriteFile(context.Background(), filepath.Join(dir, "c.pdf"), "pdf", nil)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "c.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDefaultFileName(t *testing.T) {
	now := time.Date(2024, 3, 7, 9, 5, 1, 0, time.UTC)
	assert.Equal(t, "chemical_composition_20240307_090501.csv", DefaultFileName(now, constants.FormatCSV))
	assert.Equal(t, "chemical_composition_20240307_090501.xlsx", DefaultFileName(now, constants.FormatXLSX))
}

func TestSourceFileName(t *testing.T) {
	assert.Equal(t, "cert_A1_chemical_composition.json", SourceFileName("/in/cert_A1.pdf", constants.FormatJSON))
	assert.Equal(t, "scan.v2_chemical_composition.csv", SourceFileName("scan.v2.png", constants.FormatCSV))
}

func TestSummary(t *testing.T) {
	recs := append(sampleRecords(), composition.Record{ElementSymbol: "C"})
	s := Summary(recs)
	assert.Equal(t, 4, s.Entries)
	assert.Equal(t, []string{"C", "FE", "TI"}, s.Elements)

	assert.Equal(t, RecordSummary{Entries: 0, Elements: []string{}}, Summary(nil))
}
