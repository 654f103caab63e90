package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID   string    `json:"documentId"`
	DocumentType Type      `json:"documentType"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DataResponse is the outward-facing representation of extracted fields.
type DataResponse struct {
	Name            string     `json:"name"`
	BirthDate       *string    `json:"birthDate"`
	Address         string     `json:"address"`
	OCRExecutedAt   *time.Time `json:"ocrExecutedAt"`
	OCRErrorMessage *string    `json:"ocrErrorMessage"`
}

// DetailResponse is the full document view returned by the detail endpoint.
type DetailResponse struct {
	DocumentResponse
	Data DataResponse `json:"data"`
	// PreviewURL is a short-lived signed URL; empty when unavailable.
	PreviewURL string `json:"previewUrl,omitempty"`
	Editable   bool   `json:"editable"`
}

// HistoryResponse is one audit log entry.
type HistoryResponse struct {
	ID         string         `json:"id"`
	Action     Action         `json:"action"`
	OperatorID string         `json:"operatorId"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:   doc.ID,
		DocumentType: doc.Type,
		Status:       doc.Status,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

func toDetailResponse(doc Document, data ExtractedData, previewURL string) DetailResponse {
	return DetailResponse{
		DocumentResponse: toResponse(doc),
		Data: DataResponse{
			Name:            data.Name,
			BirthDate:       data.BirthDate,
			Address:         data.Address,
			OCRExecutedAt:   data.OCRExecutedAt,
			OCRErrorMessage: data.OCRErrorMessage,
		},
		PreviewURL: previewURL,
		Editable:   doc.Status.Editable(),
	}
}

func toHistoryResponse(entries []HistoryEntry) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryResponse{
			ID:         e.ID,
			Action:     e.Action,
			OperatorID: e.OperatorID,
			Changes:    e.Changes,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
