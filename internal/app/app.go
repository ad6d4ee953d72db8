// Package app wires configuration into the extraction pipeline shared by the
// CLI and the daemon.
package app

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
	"github.com/joseph-ayodele/matcert-extractor/internal/export"
	"github.com/joseph-ayodele/matcert-extractor/internal/extract"
	"github.com/joseph-ayodele/matcert-extractor/internal/ocr"
	"github.com/joseph-ayodele/matcert-extractor/internal/ocr/vision"
	processor "github.com/joseph-ayodele/matcert-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/matcert-extractor/internal/repository"
	"github.com/joseph-ayodele/matcert-extractor/internal/server"
)

// App holds the wired components. Store and DB are nil without a database DSN.
type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	DB        *repo.DB
	Store     repo.Store
	Parser    *extract.RuleParser
	Exporter  *export.Service
	OCR       *ocr.Extractor
	Processor *processor.Processor
}

// New opens the optional database and builds the OCR and parse stages.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	if cfg.Database.DSN != "" {
		db, err := server.ConnectDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.Store = repo.NewStore(db, logger)
	} else {
		logger.Info("database disabled; runs are not persisted")
	}

	a.OCR = ocr.NewExtractor(OCRConfig(cfg.OCR), Engine(cfg.OCR, logger), logger)
	a.Parser = extract.NewRuleParser(CompositionConfig(cfg.Parser))
	a.Exporter = export.NewService(logger)

	ocrStage := processor.NewOCRStage(a.Store, extract.NewOCRAdapter(a.OCR, logger), logger)
	ocrStage.SaveOCRText = cfg.Export.SaveOCRText
	ocrStage.OutputDir = cfg.Export.OutputDir
	a.Processor = processor.NewProcessor(logger, ocrStage, processor.NewParseStage(a.Parser, a.Store, logger), a.Store)
	return a, nil
}

// TextProcessor returns a processor that parses saved OCR text files.
func (a *App) TextProcessor() *processor.Processor {
	return processor.NewProcessor(a.Logger, processor.NewTextStage(a.Store, a.Logger), processor.NewParseStage(a.Parser, a.Store, a.Logger), a.Store)
}

func (a *App) Close() {
	if a.DB != nil {
		repo.Close(a.DB, a.Logger)
	}
}

func OCRConfig(c common.OCRConfig) ocr.Config {
	return ocr.Config{
		TesseractLang: c.TesseractLang,
		TessdataDir:   c.TessdataDir,
		DPI:           c.DPI,
		MaxPages:      c.MaxPages,
		FixRotation:   c.FixRotation,
		ImagesDir:     c.ImagesDir,
		KeepImages:    c.KeepImages,
	}
}

// Engine returns the configured recognition engine; nil selects the
// extractor's built-in tesseract engine.
func Engine(c common.OCRConfig, logger *slog.Logger) ocr.Engine {
	if c.Engine != "deepseek" {
		return nil
	}
	return vision.NewClient(vision.Config{
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey,
		Model:     c.Model,
		Prompt:    c.Prompt,
		BaseSize:  c.BaseSize,
		ImageSize: c.ImageSize,
		Timeout:   c.Timeout.Std(),
	}, logger)
}

func CompositionConfig(c common.ParserConfig) composition.Config {
	cfg := composition.DefaultConfig()
	if c.HeaderMinElements > 0 {
		cfg.HeaderMinElements = c.HeaderMinElements
	}
	cfg.SkipRepeatedHeaders = c.SkipRepeatedHeaders
	cfg.AlignLabelColumn = c.AlignLabelColumn
	return cfg
}
