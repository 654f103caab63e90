package batchexport

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an export run does not exist.
var ErrNotFound = errors.New("export run not found")

// Repo persists the export run ledger.
type Repo interface {
	CreateRun(ctx context.Context, run Run) error
	FinalizeRun(ctx context.Context, runID string, status RunStatus, objectKey string, rowCount int, errorDetail *string, finishedAt time.Time) error
	InsertItems(ctx context.Context, runID string, documentIDs []string) error
	GetRun(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
