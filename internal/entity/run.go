package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/matcert-extractor/constants"
)

// Run represents one extraction run for data transfer between layers.
type Run struct {
	ID           uuid.UUID           `json:"id"`
	SourcePath   string              `json:"source_path"`
	ContentHash  string              `json:"content_hash,omitempty"`
	SourceType   string              `json:"source_type"`
	Pages        int                 `json:"pages"`
	Engine       string              `json:"engine,omitempty"`
	Method       string              `json:"method,omitempty"`
	Status       constants.JobStatus `json:"status"`
	OCRText      string              `json:"ocr_text,omitempty"`
	Confidence   float32             `json:"confidence"`
	Warnings     []string            `json:"warnings,omitempty"`
	RecordCount  int                 `json:"record_count"`
	Alloy        string              `json:"alloy,omitempty"`
	HeatNo       string              `json:"heat_no,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}

// Duration is the wall time of a finished run, zero while running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Terminal reports whether the run reached a final status.
func (r Run) Terminal() bool {
	switch r.Status {
	case constants.JobStatusParsed, constants.JobStatusNoData, constants.JobStatusFailed:
		return true
	}
	return false
}

// OCRInfo is what the OCR stage records on a run.
type OCRInfo struct {
	Pages      int
	SourceType string
	Engine     string
	Method     string
	Text       string
	Confidence float32
	Warnings   []string
}
