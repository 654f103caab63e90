package batchexport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const dateLayout = "2006-01-02"

// CreateRun inserts a running ledger row.
func (r *PGRepo) CreateRun(ctx context.Context, run Run) error {
	const query = `
INSERT INTO batch_exports (id, export_date, status, object_key, row_count, error_detail, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, NULL, $6, NULL)`
	_, err := r.DB.ExecContext(ctx, query,
		run.ID, run.ExportDate, string(run.Status), run.ObjectKey, run.RowCount, run.StartedAt,
	)
	return err
}

// FinalizeRun records the terminal outcome of a run.
func (r *PGRepo) FinalizeRun(ctx context.Context, runID string, status RunStatus, objectKey string, rowCount int, errorDetail *string, finishedAt time.Time) error {
	const query = `
UPDATE batch_exports
SET status = $1, object_key = $2, row_count = $3, error_detail = $4, finished_at = $5
WHERE id = $6`
	res, err := r.DB.ExecContext(ctx, query, string(status), objectKey, rowCount, errorDetail, finishedAt, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertItems links exported documents to the run.
func (r *PGRepo) InsertItems(ctx context.Context, runID string, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const query = `
INSERT INTO batch_export_items (export_id, document_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`
	for _, docID := range documentIDs {
		if _, err := tx.ExecContext(ctx, query, runID, docID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetRun fetches one ledger row.
func (r *PGRepo) GetRun(ctx context.Context, runID string) (Run, error) {
	const query = `
SELECT id, export_date, status, object_key, row_count, error_detail, started_at, finished_at
FROM batch_exports
WHERE id = $1
LIMIT 1`
	run, err := scanRun(r.DB.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns runs newest-first.
func (r *PGRepo) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	const query = `
SELECT id, export_date, status, object_key, row_count, error_detail, started_at, finished_at
FROM batch_exports
ORDER BY started_at DESC
LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var status string
	var exportDate time.Time
	var errDetail sql.NullString
	var finishedAt sql.NullTime
	if err := row.Scan(
		&run.ID, &exportDate, &status, &run.ObjectKey, &run.RowCount,
		&errDetail, &run.StartedAt, &finishedAt,
	); err != nil {
		return Run{}, err
	}
	run.ExportDate = exportDate.Format(dateLayout)
	run.Status = RunStatus(status)
	if errDetail.Valid {
		s := errDetail.String
		run.ErrorDetail = &s
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return run, nil
}

var _ Repo = (*PGRepo)(nil)
