package processor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/matcert-extractor/internal/entity"
	"github.com/joseph-ayodele/matcert-extractor/internal/extract"
	"github.com/joseph-ayodele/matcert-extractor/internal/repository"
)

// MergedOCRFileName is the side file the OCR stage writes into the output dir.
const MergedOCRFileName = "merged_ocr.txt"

type OCRStage struct {
	Store         repository.Store // optional
	TextExtractor extract.TextExtractor
	Logger        *slog.Logger
	SaveOCRText   bool
	OutputDir     string
}

func NewOCRStage(store repository.Store, tx extract.TextExtractor, logger *slog.Logger) *OCRStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRStage{Store: store, TextExtractor: tx, Logger: logger}
}

// NewTextStage returns a stage that reads an existing OCR text file instead of
// running OCR.
func NewTextStage(store repository.Store, logger *slog.Logger) *OCRStage {
	return NewOCRStage(store, extract.TextFileReader{}, logger)
}

// Run extracts the text of path and records it on runID when a store is set.
// uuid.Nil means the run is not persisted.
func (s *OCRStage) Run(ctx context.Context, runID uuid.UUID, path string) (extract.TextExtractionResult, error) {
	res, err := s.TextExtractor.Extract(ctx, path)
	if err != nil {
		return res, fmt.Errorf("extract text: %w", err)
	}
	for _, w := range res.Warnings {
		s.Logger.Warn("ocr.warning", "run_id", runID, "path", path, "warning", w)
	}

	if s.SaveOCRText && s.OutputDir != "" {
		if err := s.saveText(res.Text); err != nil {
			// the side file is a convenience; the run continues
			s.Logger.Warn("ocr.save_text.failed", "run_id", runID, "dir", s.OutputDir, "error", err)
		}
	}

	if s.Store != nil && runID != uuid.Nil {
		info := entity.OCRInfo{
			Pages:      res.Pages,
			SourceType: res.SourceType,
			Engine:     res.Engine,
			Method:     res.Method,
			Text:       res.Text,
			Confidence: res.Confidence,
			Warnings:   res.Warnings,
		}
		if err := s.Store.FinishOCR(ctx, runID, info); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *OCRStage) saveText(text string) error {
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.OutputDir, MergedOCRFileName)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return err
	}
	s.Logger.Info("ocr.save_text.ok", "path", path, "bytes", len(text))
	return nil
}
