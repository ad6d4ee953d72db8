package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
)

// TextExtractor is Stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // "PDF" | "IMAGE" | "TXT"
	Method     string // "pdf-ocr" | "image-ocr" | "text"
	Engine     string
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// CompositionParser is Stage 2: text -> composition records.
type CompositionParser interface {
	Parse(text string) composition.Result
}

// RuleParser is the table-heuristics parser with a fixed configuration.
type RuleParser struct {
	cfg composition.Config
}

func NewRuleParser(cfg composition.Config) *RuleParser {
	return &RuleParser{cfg: cfg}
}

func (p *RuleParser) Parse(text string) composition.Result {
	return composition.Extract(text, p.cfg)
}
