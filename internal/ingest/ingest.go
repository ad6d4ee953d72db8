package ingest

import (
	"context"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	HashHex      string
	FileExt      string
	Size         int64
	Deduplicated bool   // a PARSED run already exists for this content
	PriorRunID   string // set when Deduplicated
	Enqueued     bool
	Err          string
}

// DirStats summarizes a directory scan or ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the batch CLI and the daemon depend on.
type Ingestor interface {
	// IngestPath hashes one file and hands it to the queue unless deduplicated.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
