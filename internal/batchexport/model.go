package batchexport

import "time"

// RunStatus enumerates the states of one export run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Run is one daily export execution recorded in the ledger.
type Run struct {
	ID          string
	ExportDate  string // YYYY-MM-DD, the JST business day being exported
	Status      RunStatus
	ObjectKey   string
	RowCount    int
	ErrorDetail *string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// Item links a run to one exported document.
type Item struct {
	ExportID   string
	DocumentID string
}
