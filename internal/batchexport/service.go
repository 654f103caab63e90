package batchexport

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"docverify-backend/internal/documents"
	"docverify-backend/internal/shared/metrics"
	"docverify-backend/internal/shared/storage/object"
	"docverify-backend/internal/shared/telemetry"
)

// Service runs the daily confirmed-document export.
type Service struct {
	Repo   Repo
	Source documents.ConfirmedSource
	Store  object.KeySaver
	Prefix string
	Now    func() time.Time
}

// Run exports all documents confirmed during the JST day containing the
// reference time. The output object is keyed by date, so re-running the same
// day overwrites the previous file with the current confirmed set. Row
// counts and object keys are logged; extracted field values never are.
func (s *Service) Run(ctx context.Context) (Run, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return s.RunForDate(ctx, now())
}

// RunForDate exports the JST day containing at, for backfills.
func (s *Service) RunForDate(ctx context.Context, at time.Time) (Run, error) {
	start, end := JSTDayRange(at)
	dateKey := DateKey(at)
	objectKey := s.objectKey(dateKey)

	run := Run{
		ID:         uuid.NewString(),
		ExportDate: dateKey,
		Status:     RunStatusRunning,
		ObjectKey:  objectKey,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.Repo.CreateRun(ctx, run); err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	metrics.IncExportRun()

	telemetry.Info("export.started", map[string]any{
		"run_id":       run.ID,
		"export_date":  dateKey,
		"window_start": start.Format(time.RFC3339),
		"window_end":   end.Format(time.RFC3339),
	})

	docs, err := s.Source.ConfirmedBetween(ctx, start, end)
	if err != nil {
		return s.finalizeFailed(ctx, run, fmt.Errorf("load confirmed documents: %w", err))
	}

	payload := renderCSV(docs)
	if _, err := s.Store.SaveWithKey(ctx, objectKey, "text/csv; charset=utf-8", strings.NewReader(payload)); err != nil {
		return s.finalizeFailed(ctx, run, fmt.Errorf("store export: %w", err))
	}

	ids := make([]string, 0, len(docs))
	for _, cd := range docs {
		ids = append(ids, cd.Document.ID)
	}
	if err := s.Repo.InsertItems(ctx, run.ID, ids); err != nil {
		return s.finalizeFailed(ctx, run, fmt.Errorf("record items: %w", err))
	}

	finishedAt := time.Now().UTC()
	if err := s.Repo.FinalizeRun(ctx, run.ID, RunStatusSuccess, objectKey, len(docs), nil, finishedAt); err != nil {
		return Run{}, fmt.Errorf("finalize run: %w", err)
	}

	run.Status = RunStatusSuccess
	run.RowCount = len(docs)
	run.FinishedAt = &finishedAt
	metrics.AddExportRows(len(docs))
	telemetry.Info("export.completed", map[string]any{
		"run_id":      run.ID,
		"export_date": dateKey,
		"object_key":  objectKey,
		"row_count":   len(docs),
	})
	return run, nil
}

func (s *Service) finalizeFailed(ctx context.Context, run Run, cause error) (Run, error) {
	metrics.IncExportRunFailed()
	telemetry.Error("export.failed", map[string]any{
		"run_id":      run.ID,
		"export_date": run.ExportDate,
		"err":         cause.Error(),
	})
	msg := cause.Error()
	finishedAt := time.Now().UTC()
	if err := s.Repo.FinalizeRun(ctx, run.ID, RunStatusFailed, run.ObjectKey, 0, &msg, finishedAt); err != nil {
		telemetry.Error("export.finalize_failed", map[string]any{
			"run_id": run.ID,
			"err":    err.Error(),
		})
	}
	run.Status = RunStatusFailed
	run.ErrorDetail = &msg
	run.FinishedAt = &finishedAt
	return run, cause
}

func (s *Service) objectKey(dateKey string) string {
	prefix := strings.Trim(s.Prefix, "/")
	if prefix == "" {
		return dateKey + ".csv"
	}
	return path.Join(prefix, dateKey+".csv")
}
