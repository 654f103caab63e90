package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const dateLayout = "2006-01-02"

// Create inserts a new document and its empty extracted-data row in one
// transaction, so the one-row-per-document invariant holds from upload time.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const docQuery = `
INSERT INTO documents (id, user_id, document_type, status, image_key, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, docQuery,
		doc.ID, doc.UserID, string(doc.Type), string(doc.Status), doc.ImageKey, doc.CreatedAt, doc.UpdatedAt,
	); err != nil {
		return err
	}

	const dataQuery = `
INSERT INTO document_data (document_id, name, birth_date, address, ocr_executed_at, ocr_error_message, updated_at)
VALUES ($1, '', NULL, '', NULL, NULL, $2)`
	if _, err := tx.ExecContext(ctx, dataQuery, doc.ID, doc.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID fetches a document by ID scoped to its owner.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	const query = `
SELECT id, user_id, document_type, status, image_key, created_at, updated_at
FROM documents
WHERE user_id = $1 AND id = $2
LIMIT 1`
	var doc Document
	var docType, status string
	err := r.DB.QueryRowContext(ctx, query, userID, documentID).Scan(
		&doc.ID, &doc.UserID, &docType, &status, &doc.ImageKey, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	doc.Type = Type(docType)
	doc.Status = Status(status)
	return doc, nil
}

// ListByUser lists documents ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, user_id, document_type, status, image_key, created_at, updated_at
FROM documents
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var doc Document
		var docType, status string
		if err := rows.Scan(&doc.ID, &doc.UserID, &docType, &status, &doc.ImageKey, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doc.Type = Type(docType)
		doc.Status = Status(status)
		out = append(out, doc)
	}
	return out, rows.Err()
}

// CountByStatus returns per-status document counts for a user.
func (r *PGRepo) CountByStatus(ctx context.Context, userID string) (map[Status]int, error) {
	const query = `
SELECT status, COUNT(*)
FROM documents
WHERE user_id = $1
GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// GetData fetches the extracted-data row for a document.
func (r *PGRepo) GetData(ctx context.Context, documentID string) (ExtractedData, error) {
	const query = `
SELECT document_id, name, birth_date, address, ocr_executed_at, ocr_error_message, updated_at
FROM document_data
WHERE document_id = $1
LIMIT 1`
	var data ExtractedData
	var birth sql.NullTime
	var executedAt sql.NullTime
	var errMsg sql.NullString
	err := r.DB.QueryRowContext(ctx, query, documentID).Scan(
		&data.DocumentID, &data.Name, &birth, &data.Address, &executedAt, &errMsg, &data.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExtractedData{}, ErrNotFound
		}
		return ExtractedData{}, err
	}
	if birth.Valid {
		s := birth.Time.Format(dateLayout)
		data.BirthDate = &s
	}
	if executedAt.Valid {
		t := executedAt.Time
		data.OCRExecutedAt = &t
	}
	if errMsg.Valid {
		m := errMsg.String
		data.OCRErrorMessage = &m
	}
	return data, nil
}

// UpdateFields overwrites the manually editable fields.
func (r *PGRepo) UpdateFields(ctx context.Context, documentID string, name string, birthDate *string, address string) error {
	const query = `
UPDATE document_data
SET name = $1, birth_date = $2, address = $3, updated_at = $4
WHERE document_id = $5`
	_, err := r.DB.ExecContext(ctx, query, name, birthDate, address, time.Now().UTC(), documentID)
	return err
}

// SetOCRResult overwrites the extracted fields with a fresh OCR result and
// clears any prior error message.
func (r *PGRepo) SetOCRResult(ctx context.Context, documentID string, name string, birthDate *string, address string, executedAt time.Time) error {
	const query = `
UPDATE document_data
SET name = $1, birth_date = $2, address = $3, ocr_executed_at = $4, ocr_error_message = NULL, updated_at = $4
WHERE document_id = $5`
	_, err := r.DB.ExecContext(ctx, query, name, birthDate, address, executedAt, documentID)
	return err
}

// RecordOCRFailure reverts the document to uploaded and stores the error
// message so the operator can see why manual entry is required.
func (r *PGRepo) RecordOCRFailure(ctx context.Context, documentID, message string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
		string(StatusUploaded), now, documentID,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE document_data SET ocr_error_message = $1, updated_at = $2 WHERE document_id = $3`,
		message, now, documentID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// TransitionStatus conditionally moves the document out of one of the given
// states. The WHERE clause on the current status makes the transition atomic,
// which is what guards OCR against duplicate trigger events.
func (r *PGRepo) TransitionStatus(ctx context.Context, documentID string, from []Status, to Status) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	placeholders := make([]string, len(from))
	args := []any{string(to), time.Now().UTC(), documentID}
	for i, s := range from {
		placeholders[i] = fmt.Sprintf("$%d", i+4)
		args = append(args, string(s))
	}
	query := fmt.Sprintf(`
UPDATE documents
SET status = $1, updated_at = $2
WHERE id = $3 AND status IN (%s)`, strings.Join(placeholders, ", "))

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return updated > 0, nil
}

// AppendHistory inserts an audit log entry.
func (r *PGRepo) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	changes := entry.Changes
	if changes == nil {
		changes = map[string]any{}
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	const query = `
INSERT INTO document_history (id, document_id, operator_id, action, changes, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.DB.ExecContext(ctx, query,
		entry.ID, entry.DocumentID, entry.OperatorID, string(entry.Action), payload, entry.CreatedAt,
	)
	return err
}

// ListHistory returns entries newest-first.
func (r *PGRepo) ListHistory(ctx context.Context, documentID string) ([]HistoryEntry, error) {
	const query = `
SELECT id, document_id, operator_id, action, changes, created_at
FROM document_history
WHERE document_id = $1
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var action string
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.DocumentID, &entry.OperatorID, &action, &payload, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Action = Action(action)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Changes); err != nil {
				return nil, fmt.Errorf("unmarshal changes: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ConfirmedBetween selects confirmed documents whose updated_at falls inside
// the window, joined with extracted data and the most recent confirm action.
func (r *PGRepo) ConfirmedBetween(ctx context.Context, start, end time.Time) ([]ConfirmedDocument, error) {
	const query = `
SELECT d.id, d.user_id, d.document_type, d.status, d.image_key, d.created_at, d.updated_at,
       dd.name, dd.birth_date, dd.address, dd.ocr_executed_at,
       h.operator_id, h.created_at
FROM documents d
JOIN document_data dd ON dd.document_id = d.id
LEFT JOIN LATERAL (
    SELECT operator_id, created_at
    FROM document_history
    WHERE document_id = d.id AND action = 'confirmed'
    ORDER BY created_at DESC
    LIMIT 1
) h ON true
WHERE d.status = 'confirmed' AND d.updated_at >= $1 AND d.updated_at <= $2
ORDER BY d.created_at`

	rows, err := r.DB.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConfirmedDocument
	for rows.Next() {
		var cd ConfirmedDocument
		var docType, status string
		var birth, executedAt, confirmedAt sql.NullTime
		var confirmedBy sql.NullString
		if err := rows.Scan(
			&cd.Document.ID, &cd.Document.UserID, &docType, &status, &cd.Document.ImageKey,
			&cd.Document.CreatedAt, &cd.Document.UpdatedAt,
			&cd.Data.Name, &birth, &cd.Data.Address, &executedAt,
			&confirmedBy, &confirmedAt,
		); err != nil {
			return nil, err
		}
		cd.Document.Type = Type(docType)
		cd.Document.Status = Status(status)
		cd.Data.DocumentID = cd.Document.ID
		if birth.Valid {
			s := birth.Time.Format(dateLayout)
			cd.Data.BirthDate = &s
		}
		if executedAt.Valid {
			t := executedAt.Time
			cd.Data.OCRExecutedAt = &t
		}
		if confirmedBy.Valid {
			cd.ConfirmedBy = confirmedBy.String
		}
		if confirmedAt.Valid {
			t := confirmedAt.Time
			cd.ConfirmedAt = &t
		}
		out = append(out, cd)
	}
	return out, rows.Err()
}

var (
	_ Repo            = (*PGRepo)(nil)
	_ ConfirmedSource = (*PGRepo)(nil)
)
