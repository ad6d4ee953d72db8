package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/async"
	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	processor "github.com/joseph-ayodele/matcert-extractor/internal/pipeline"
	"github.com/joseph-ayodele/matcert-extractor/internal/repository"
)

// FSIngestor reads from the local filesystem and feeds the processing queue.
type FSIngestor struct {
	Store       repository.Store // optional; enables content deduplication
	Queue       async.Queue
	AllowedExts []string // nil -> default set
	Force       bool     // enqueue even if deduplicated
	Logger      *slog.Logger
}

func NewFSIngestor(store repository.Store, queue async.Queue, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{Store: store, Queue: queue, Logger: logger}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	var out IngestionResult

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, err
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !allowed(abs, extSet(i.AllowedExts)) {
		return out, common.NewAppError(common.CodeUnsupported, fmt.Sprintf("unsupported or missing extension: %q", ext), common.ErrUnsupported)
	}
	out.FileExt = ext

	st, err := os.Stat(abs)
	if err != nil {
		return out, err
	}
	out.Size = st.Size()

	out.HashHex, err = processor.HashFile(abs)
	if err != nil {
		return out, fmt.Errorf("hash %s: %w", abs, err)
	}

	if i.Store != nil {
		prior, err := i.Store.FindParsedByHash(ctx, out.HashHex)
		switch {
		case err == nil:
			out.Deduplicated = true
			out.PriorRunID = prior.ID.String()
		case !errors.Is(err, common.ErrNotFound):
			return out, err
		}
	}

	if out.Deduplicated && !i.Force {
		i.Logger.Info("ingest.dedup", "path", abs, "hash", out.HashHex, "prior_run_id", out.PriorRunID)
		return out, nil
	}
	if i.Queue != nil {
		job := async.Job{Path: abs, Force: i.Force, TraceID: common.RequestIDFromContext(ctx)}
		if err := i.Queue.Enqueue(ctx, job); err != nil {
			return out, err
		}
		out.Enqueued = true
	}
	return out, nil
}

// IngestDirectory scans root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}
	paths, stats, err := ScanDirectory(root, i.AllowedExts, skipHidden)
	if err != nil {
		return nil, stats, err
	}

	results := make([]IngestionResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}
		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.SourcePath = path
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			i.Logger.Warn("ingest.failed", "path", path, "error", err)
			continue
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
	}
	i.Logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
