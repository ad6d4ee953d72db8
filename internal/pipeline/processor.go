package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
	"github.com/joseph-ayodele/matcert-extractor/internal/extract"
	"github.com/joseph-ayodele/matcert-extractor/internal/repository"
)

// Processor coordinates text extraction (OCR) then composition parsing.
type Processor struct {
	Logger *slog.Logger
	OCR    *OCRStage
	Parse  *ParseStage
	Store  repository.Store // optional
}

// RunResult is the outcome of one ProcessFile call.
type RunResult struct {
	RunID    uuid.UUID
	Path     string
	Hash     string
	OCR      extract.TextExtractionResult
	Result   composition.Result
	Status   constants.JobStatus
	Duration time.Duration
}

func NewProcessor(logger *slog.Logger, ocr *OCRStage, parse *ParseStage, store repository.Store) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, OCR: ocr, Parse: parse, Store: store}
}

// ProcessFile runs the OCR stage on path, then the parse stage on the
// resulting text. With a store the run and its records are persisted; a
// failure in either stage marks the run FAILED. A document without a
// composition table returns the result with common.ErrNoComposition.
func (p *Processor) ProcessFile(ctx context.Context, path string) (RunResult, error) {
	start := time.Now()
	out := RunResult{Path: path, Status: constants.JobStatusRunning}

	hash, err := HashFile(path)
	if err != nil {
		out.Status = constants.JobStatusFailed
		return out, common.NewAppError(common.CodeRead, "hash source file", err)
	}
	out.Hash = hash

	if p.Store != nil {
		run, err := p.Store.StartRun(ctx, path, hash)
		if err != nil {
			out.Status = constants.JobStatusFailed
			return out, err
		}
		out.RunID = run.ID
		ctx = common.WithRunID(ctx, run.ID.String())
	}

	out.OCR, err = p.OCR.Run(ctx, out.RunID, path)
	if err != nil {
		p.Logger.Error("processor.ocr.failed", "run_id", out.RunID, "path", path, "err", err)
		return p.fail(ctx, out, start, err)
	}
	p.Logger.Info("processor.ocr.ok",
		"run_id", out.RunID,
		"path", path,
		"method", out.OCR.Method,
		"engine", out.OCR.Engine,
		"pages", out.OCR.Pages,
		"confidence", out.OCR.Confidence,
		"warnings", len(out.OCR.Warnings),
	)

	out.Result, out.Status, err = p.Parse.Run(ctx, out.RunID, out.OCR.Text)
	out.Duration = time.Since(start)
	switch {
	case errors.Is(err, common.ErrNoComposition):
		p.Logger.Warn("processor.parse.no_data", "run_id", out.RunID, "path", path, "duration_ms", out.Duration.Milliseconds())
		return out, err
	case err != nil:
		p.Logger.Error("processor.parse.failed", "run_id", out.RunID, "err", err)
		return p.fail(ctx, out, start, err)
	}
	p.Logger.Info("processor.parse.ok",
		"run_id", out.RunID,
		"records", len(out.Result.Records),
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func (p *Processor) fail(ctx context.Context, out RunResult, start time.Time, cause error) (RunResult, error) {
	out.Status = constants.JobStatusFailed
	out.Duration = time.Since(start)
	if p.Store != nil && out.RunID != uuid.Nil {
		// the caller's context may already be done; the failure is still recorded
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := p.Store.FailRun(fctx, out.RunID, cause.Error()); err != nil {
			p.Logger.Error("processor.fail_run.failed", "run_id", out.RunID, "err", err)
		}
	}
	return out, cause
}

// HashFile returns the hex sha256 of the file contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
