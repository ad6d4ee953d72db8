package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/matcert-extractor/constants"
)

// TextFileReader serves a previously saved OCR text as Stage 1 output, so a
// document can be re-parsed without running OCR again.
type TextFileReader struct{}

func (TextFileReader) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return TextExtractionResult{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return TextExtractionResult{SourceType: constants.TXT}, fmt.Errorf("read ocr text: %w", err)
	}
	text := string(b)
	pages := strings.Count(text, "\nPAGE ")
	if pages == 0 && strings.TrimSpace(text) != "" {
		pages = 1
	}
	return TextExtractionResult{
		Text:       text,
		Pages:      pages,
		SourceType: constants.TXT,
		Method:     "text",
		Duration:   time.Since(start),
	}, nil
}
