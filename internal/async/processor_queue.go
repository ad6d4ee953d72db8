package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	processor "github.com/joseph-ayodele/matcert-extractor/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// FileProcessor is the part of the pipeline the workers drive.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) (processor.RunResult, error)
}

// ResultHandler observes every finished job. It is called from worker
// goroutines and must be safe for concurrent use.
type ResultHandler func(job Job, res processor.RunResult, err error)

type ProcessorQueue struct {
	proc     FileProcessor
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	onResult ResultHandler
	base     context.Context

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithResultHandler(h ResultHandler) Option {
	return func(q *ProcessorQueue) {
		q.onResult = h
	}
}

// WithBaseContext sets the context every job context derives from. Cancelling
// it stops in-flight jobs and fails the ones still queued.
func WithBaseContext(ctx context.Context) Option {
	return func(q *ProcessorQueue) {
		if ctx != nil {
			q.base = ctx
		}
	}
}

func NewProcessorQueue(proc FileProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 10 * time.Minute,
		base:    context.Background(),
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	wait := time.Since(job.SubmittedAt)
	ctx := common.WithRequestID(q.base, job.TraceID)
	ctx, cancel := common.WithTimeout(ctx, q.timeout)
	defer cancel()

	// jobs still queued when the base context ends are not started
	res, err := processor.RunResult{Path: job.Path}, ctx.Err()
	if err == nil {
		res, err = q.proc.ProcessFile(ctx, job.Path)
	}
	switch {
	case errors.Is(err, common.ErrNoComposition):
		q.logger.Warn("no composition found", "worker_id", workerID, "path", job.Path, "run_id", res.RunID)
	case err != nil:
		q.logger.Error("processing failed", "worker_id", workerID, "path", job.Path, "run_id", res.RunID, "error", err)
	default:
		q.logger.Info("processed file successfully",
			"worker_id", workerID,
			"path", job.Path,
			"run_id", res.RunID,
			"records", len(res.Result.Records),
			"duration_ms", res.Duration.Milliseconds(),
			"queue_wait_ms", wait.Milliseconds(),
		)
	}
	if q.onResult != nil {
		q.onResult(job, res, err)
	}
}

// Enqueue blocks while the buffer is full. It fails once Shutdown started or
// when ctx is done before a slot frees up.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.TraceID == "" {
		job.TraceID = uuid.NewString()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued file for processing", "path", job.Path, "force", job.Force, "trace_id", job.TraceID)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
