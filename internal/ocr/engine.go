package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Engine recognizes the text of one page image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// TesseractEngine runs the tesseract CLI. It emits plain text, so tables
// come out pipe-less and usually yield no composition; it is the offline
// fallback for the vision engine.
type TesseractEngine struct {
	bin     string
	lang    string
	tessdir string
	psm     int
	runner  Runner
	logger  *slog.Logger
}

func NewTesseractEngine(cfg Config, r Runner, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = execRunner{logger: logger}
	}
	bin := cfg.Tesseract
	if bin == "" {
		bin = "tesseract"
	}
	lang := cfg.TesseractLang
	if lang == "" {
		lang = "eng"
	}
	return &TesseractEngine{bin: bin, lang: lang, tessdir: cfg.TessdataDir, psm: 6, runner: r, logger: logger}
}

func (t *TesseractEngine) Name() string { return "tesseract" }

func (t *TesseractEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	// tesseract <file> stdout -l <lang> --psm 6
	args := []string{imagePath, "stdout", "-l", t.lang, "--psm", fmt.Sprintf("%d", t.psm)}
	if t.tessdir != "" {
		args = append(args, "--tessdata-dir", t.tessdir)
	}
	out, errb, err := t.runner.Run(ctx, t.bin, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}
