package documents

// Status is the canonical document lifecycle state shared by the OCR
// orchestrator, reviewer actions and client polling.
type Status string

const (
	// StatusUploaded is the initial state and the fallback re-entry point
	// when OCR cannot run (manual entry).
	StatusUploaded Status = "uploaded"
	// StatusOCRProcessing is transient; entered only by the orchestrator.
	// Editing is disabled and clients poll while a document is here.
	StatusOCRProcessing Status = "ocr_processing"
	// StatusOCRCompleted means OCR succeeded; awaiting confirm/reject.
	StatusOCRCompleted Status = "ocr_completed"
	StatusConfirmed    Status = "confirmed"
	StatusRejected     Status = "rejected"
	// StatusReviewed and StatusReviewRejected are the second-pass
	// re-examination outcomes layered on top of confirmed.
	StatusReviewed       Status = "reviewed"
	StatusReviewRejected Status = "review_rejected"
)

var transitions = map[Status][]Status{
	StatusUploaded:       {StatusOCRProcessing, StatusConfirmed, StatusRejected},
	StatusOCRProcessing:  {StatusOCRCompleted, StatusUploaded},
	StatusOCRCompleted:   {StatusOCRProcessing, StatusConfirmed, StatusRejected},
	StatusConfirmed:      {StatusReviewed, StatusReviewRejected},
	StatusRejected:       nil,
	StatusReviewed:       nil,
	StatusReviewRejected: nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Editable reports whether extracted fields may be modified in this state.
func (s Status) Editable() bool {
	return s == StatusUploaded || s == StatusOCRCompleted
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
