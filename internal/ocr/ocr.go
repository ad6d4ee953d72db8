// Package ocr turns certificate PDFs and page images into merged page text.
// Rasterization and orientation detection shell out through Runner; the text
// itself comes from a pluggable Engine.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/common"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI, default 400
	MaxPages      int // 0 = no limit

	// FixRotation runs tesseract OSD on each page and rotates it upright.
	FixRotation bool

	// ImagesDir receives <stem>_page_<n>.png when KeepImages is set;
	// otherwise pages live in a temp dir removed after extraction.
	ImagesDir  string
	KeepImages bool
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-ocr" | "image-ocr"
	Engine     string
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
	PageImages []string // only populated when images are kept
}

type Extractor struct {
	cfg    Config
	runner Runner
	engine Engine
	logger *slog.Logger
}

func NewExtractor(cfg Config, engine Engine, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 400
	}
	if cfg.ImagesDir == "" {
		cfg.ImagesDir = "./images"
	}
	r := execRunner{logger: logger}
	if engine == nil {
		engine = NewTesseractEngine(cfg, r, logger)
	}
	return &Extractor{cfg: cfg, runner: r, engine: engine, logger: logger}
}

// WithRunner swaps the command runner, used by tests.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	if te, ok := e.engine.(*TesseractEngine); ok {
		te.runner = r
	}
	return e
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("ocr.start", "path", path, "ext", ext, "engine", e.engine.Name())

	var res ExtractionResult
	var err error
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	default:
		e.logger.Error("ocr.unsupported", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	res.Engine = e.engine.Name()
	if err != nil {
		return res, err
	}
	res.Confidence = heuristicConfidence(res.Text)
	e.logger.Info("ocr.ok",
		"path", path,
		"pages", res.Pages,
		"chars", len(res.Text),
		"warnings", len(res.Warnings),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.IMAGE, Method: "image-ocr", Language: e.cfg.TesseractLang}
	img := path
	if e.cfg.FixRotation {
		// never rewrite the caller's file
		tmpDir, err := os.MkdirTemp("", "matcert-img-*")
		if err != nil {
			return res, err
		}
		defer os.RemoveAll(tmpDir)
		var w string
		img, w = e.fixOrientation(ctx, path, filepath.Join(tmpDir, "page.png"))
		if w != "" {
			res.Warnings = append(res.Warnings, w)
		}
	}
	texts, warns, err := e.recognizePages(ctx, []string{img}, false)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	res.Pages = 1
	res.Text = MergePages(texts)
	return res, nil
}

// recognizePages optionally fixes orientation in place, then runs the engine
// on each page.
// A page whose OCR fails contributes empty text and a warning. It errors on
// context cancellation or when every page failed.
func (e *Extractor) recognizePages(ctx context.Context, pages []string, fixRotation bool) ([]string, []string, error) {
	var warns []string
	var failed int
	var lastErr error
	texts := make([]string, 0, len(pages))
	for i, img := range pages {
		if err := ctx.Err(); err != nil {
			return nil, warns, err
		}
		if fixRotation {
			var w string
			if img, w = e.fixOrientation(ctx, img, img); w != "" {
				warns = append(warns, w)
			}
		}
		start := time.Now()
		txt, err := e.engine.Recognize(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				return nil, warns, ctx.Err()
			}
			warns = append(warns, fmt.Sprintf("page %d: %v", i+1, err))
			failed++
			lastErr = err
			txt = ""
		}
		txt = Normalize(txt)
		if txt == "" && err == nil {
			warns = append(warns, fmt.Sprintf("page %d: empty text", i+1))
		}
		e.logger.Debug("ocr.page",
			"page", i+1,
			"of", len(pages),
			"chars", len(txt),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		texts = append(texts, txt)
	}
	if failed == len(pages) && lastErr != nil {
		return nil, warns, fmt.Errorf("%w on all %d pages: %w", common.ErrOCR, failed, lastErr)
	}
	return texts, warns, nil
}
