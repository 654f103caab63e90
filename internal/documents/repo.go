package documents

import (
	"context"
	"time"
)

// Repo defines persistence operations for documents, their extracted data and
// their history log.
type Repo interface {
	// Create inserts the document together with its empty ExtractedData row.
	Create(ctx context.Context, doc Document) error
	// GetByID fetches a document scoped to its owner.
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
	// CountByStatus returns per-status document counts for a user.
	CountByStatus(ctx context.Context, userID string) (map[Status]int, error)

	GetData(ctx context.Context, documentID string) (ExtractedData, error)
	// UpdateFields overwrites the manually editable fields.
	UpdateFields(ctx context.Context, documentID string, name string, birthDate *string, address string) error
	// SetOCRResult overwrites all extracted fields with a fresh OCR result and
	// clears any prior error message.
	SetOCRResult(ctx context.Context, documentID string, name string, birthDate *string, address string, executedAt time.Time) error
	// RecordOCRFailure reverts the document to uploaded and stores the error
	// message for operator visibility.
	RecordOCRFailure(ctx context.Context, documentID, message string) error

	// TransitionStatus conditionally moves the document from one of the given
	// states to the target state. It reports false when the document was not
	// in any of the from states, leaving it untouched.
	TransitionStatus(ctx context.Context, documentID string, from []Status, to Status) (bool, error)

	AppendHistory(ctx context.Context, entry HistoryEntry) error
	// ListHistory returns entries newest-first.
	ListHistory(ctx context.Context, documentID string) ([]HistoryEntry, error)
}

// ConfirmedSource selects confirmed documents for export. The window bounds
// are inclusive UTC timestamps compared against the document's updated_at.
type ConfirmedSource interface {
	ConfirmedBetween(ctx context.Context, start, end time.Time) ([]ConfirmedDocument, error)
}
