package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Composition"

// Service writes composition records in the supported export formats.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// DefaultFileName is chemical_composition_YYYYMMDD_HHMMSS.<ext>.
func DefaultFileName(now time.Time, format constants.ExportFormat) string {
	return fmt.Sprintf("chemical_composition_%s.%s", now.Format("20060102_150405"), format)
}

// SourceFileName names the export of one input in batch mode:
// <input stem>_chemical_composition.<ext>.
func SourceFileName(source string, format constants.ExportFormat) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return fmt.Sprintf("%s_chemical_composition.%s", stem, format)
}

// WriteFile writes records to path in format. The file is written next to its
// final name and renamed, so readers never see a partial export.
func (s *Service) WriteFile(ctx context.Context, path string, format constants.ExportFormat, recs []composition.Record) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := s.Write(&buf, format, recs); err != nil {
		return err
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", format, err)
	}

	s.logger.Info("export."+string(format)+".ok",
		"path", path,
		"rows", len(recs),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Write encodes records to w in format.
func (s *Service) Write(w io.Writer, format constants.ExportFormat, recs []composition.Record) error {
	switch format {
	case constants.FormatCSV:
		return WriteCSV(w, recs)
	case constants.FormatJSON:
		return WriteJSON(w, recs)
	case constants.FormatXLSX:
		b, err := WriteXLSX(recs)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, recs []composition.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	for _, r := range recs {
		if err := cw.Write(cells(r)); err != nil {
			return fmt.Errorf("csv write: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	return nil
}

// WriteJSON writes records as an array of objects after validating them
// against RecordsJSONSchema.
func WriteJSON(w io.Writer, recs []composition.Record) error {
	if recs == nil {
		recs = []composition.Record{}
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	if err := ValidateJSONAgainstSchema(RecordsJSONSchema(), b); err != nil {
		return err
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("json write: %w", err)
	}
	return nil
}

// WriteXLSX returns an XLSX workbook (as bytes) with a single Composition sheet.
// Numeric columns hold numbers; missing values are left blank.
func WriteXLSX(recs []composition.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// rename the default sheet rather than leaving an empty Sheet1 behind
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(idx)

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, style)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		for col, v := range cells(r) {
			switch {
			case col == 2 && r.Value != nil:
				write(col+1, *r.Value)
			case col == 3 && r.MaxValue != nil:
				write(col+1, *r.MaxValue)
			case v != "":
				write(col+1, v)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 14) // symbol
	_ = f.SetColWidth(SheetName, "B", "B", 16) // name
	_ = f.SetColWidth(SheetName, "C", "D", 11) // values
	_ = f.SetColWidth(SheetName, "E", "E", 8)  // unit
	_ = f.SetColWidth(SheetName, "F", "G", 16) // type, position
	_ = f.SetColWidth(SheetName, "H", "I", 14) // alloy, heat

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
