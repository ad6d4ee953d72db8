package constants

// JobStatus is the canonical status for rows in extraction_run.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning JobStatus = "RUNNING" // in progress
	JobStatusOCROK   JobStatus = "OCR_OK"  // stage 1 completed (text extracted)
	JobStatusParsed  JobStatus = "PARSED"  // stage 2 completed (records extracted)
	JobStatusNoData  JobStatus = "NO_DATA" // parsed, but no composition table found
	JobStatusFailed  JobStatus = "FAILED"  // terminal failure
)
