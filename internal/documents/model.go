package documents

import "time"

// Type identifies which identity document layout an image carries.
type Type string

const (
	TypeMyNumberCard   Type = "mynumber_card"
	TypeDriversLicense Type = "drivers_license"
)

// Valid reports whether t is a known document type.
func (t Type) Valid() bool {
	return t == TypeMyNumberCard || t == TypeDriversLicense
}

// Label returns the Japanese label used in exports.
func (t Type) Label() string {
	switch t {
	case TypeMyNumberCard:
		return "マイナンバーカード"
	case TypeDriversLicense:
		return "運転免許証"
	default:
		return string(t)
	}
}

// Document represents an uploaded identity document owned by a user.
// ImageKey is an object-store path inside a private bucket; it is never a
// public URL and only leaves the server as a short-lived signed URL.
type Document struct {
	ID        string
	UserID    string
	Type      Type
	Status    Status
	ImageKey  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExtractedData holds the structured fields for a document, exactly one row
// per document. Created empty at upload time and overwritten (not appended)
// by each OCR attempt or manual edit.
type ExtractedData struct {
	DocumentID      string
	Name            string
	BirthDate       *string // ISO date YYYY-MM-DD
	Address         string
	OCRExecutedAt   *time.Time
	OCRErrorMessage *string
	UpdatedAt       time.Time
}

// Action enumerates the recorded operator actions.
type Action string

const (
	ActionUploaded       Action = "uploaded"
	ActionOCRExtracted   Action = "ocr_extracted"
	ActionConfirmed      Action = "confirmed"
	ActionRejected       Action = "rejected"
	ActionModified       Action = "modified"
	ActionReviewed       Action = "reviewed"
	ActionReviewRejected Action = "review_rejected"
)

// HistoryEntry is one row of the append-only per-document audit log.
// Entries are never mutated after insert.
type HistoryEntry struct {
	ID         string
	DocumentID string
	OperatorID string
	Action     Action
	Changes    map[string]any
	CreatedAt  time.Time
}

// ConfirmedDocument bundles a confirmed document with its extracted data and
// the latest confirm action, as consumed by the batch export job. When a
// document was rejected and re-confirmed, only the most recent confirm
// counts.
type ConfirmedDocument struct {
	Document    Document
	Data        ExtractedData
	ConfirmedBy string
	ConfirmedAt *time.Time
}
