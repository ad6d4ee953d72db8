package async

import (
	"context"
	"time"
)

// Job is one file submitted for processing.
type Job struct {
	Path        string
	Force       bool // process even if a PARSED run exists for the same content
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
