package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/matcert-extractor/constants"
)

func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF, Method: "pdf-ocr", Language: e.cfg.TesseractLang}

	declared, err := api.PageCountFile(path)
	if err != nil {
		return res, fmt.Errorf("read pdf %s: %w", path, err)
	}
	if declared == 0 {
		return res, fmt.Errorf("pdf %s has no pages", path)
	}

	pages, cleanup, warns, err := e.rasterize(ctx, path, declared)
	res.Warnings = append(res.Warnings, warns...)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return res, err
	}
	if len(pages) != declared && (e.cfg.MaxPages <= 0 || len(pages) < e.cfg.MaxPages) {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("pdf declares %d pages, rendered %d", declared, len(pages)))
	}

	texts, warns, err := e.recognizePages(ctx, pages, e.cfg.FixRotation)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	res.Pages = len(pages)
	res.Text = MergePages(texts)
	if e.cfg.KeepImages {
		res.PageImages = pages
	}
	return res, nil
}

// rasterize renders the PDF into one PNG per page with pdftoppm and returns
// the page paths in page order. Kept images are named <stem>_page_<n>.png.
func (e *Extractor) rasterize(ctx context.Context, path string, pageCount int) ([]string, func(), []string, error) {
	tmpDir, err := os.MkdirTemp("", "matcert-pp-*")
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.cleanup.failed", "dir", tmpDir, "error", err)
		}
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 400 -png [-l N] <in.pdf> <tmp/page>
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 && e.cfg.MaxPages < pageCount {
		args = append(args, "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, path, prefix)
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
		return nil, cleanup, []string{strings.TrimSpace(string(errb))}, fmt.Errorf("pdftoppm: %w", err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sortByPageNumber(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, cleanup, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}
	if !e.cfg.KeepImages {
		return matches, cleanup, nil, nil
	}

	if err := os.MkdirAll(e.cfg.ImagesDir, 0o755); err != nil {
		return nil, cleanup, nil, fmt.Errorf("create images dir: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	kept := make([]string, 0, len(matches))
	for i, m := range matches {
		dst := PageImagePath(e.cfg.ImagesDir, stem, i+1)
		if err := moveFile(m, dst); err != nil {
			return nil, cleanup, nil, fmt.Errorf("keep page image: %w", err)
		}
		kept = append(kept, dst)
	}
	return kept, cleanup, nil, nil
}

// PageImagePath is where page n (1-based) of the PDF named stem is kept.
func PageImagePath(dir, stem string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_page_%d.png", stem, n))
}

// sortByPageNumber orders pdftoppm outputs numerically. pdftoppm pads the page
// number to the width of the page count, but sorting on the parsed suffix
// keeps the order right regardless.
func sortByPageNumber(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndex(base, "-")
		n, err := strconv.Atoi(base[i+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}
