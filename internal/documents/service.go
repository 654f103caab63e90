package documents

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"docverify-backend/internal/shared/storage/object"
	"docverify-backend/internal/shared/telemetry"
)

// previewURLTTL is how long a user-facing signed image URL stays valid.
const previewURLTTL = time.Hour

// Service contains business logic for the document lifecycle.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
}

// Upload saves the image to object storage, records the document in the
// uploaded state and appends the initial history entry.
func (s *Service) Upload(ctx context.Context, userID string, docType Type, fileName string, r io.Reader) (Document, error) {
	if userID == "" || fileName == "" {
		return Document{}, ErrInvalidInput
	}
	if !docType.Valid() {
		return Document{}, fmt.Errorf("%w: unknown document type %q", ErrInvalidInput, docType)
	}

	imageKey, _, _, err := s.Store.Save(ctx, userID, fileName, r)
	if err != nil {
		return Document{}, err
	}

	return s.create(ctx, userID, docType, imageKey)
}

// Register records a document whose image was already uploaded through a
// presigned URL to the given storage key.
func (s *Service) Register(ctx context.Context, userID string, docType Type, imageKey string) (Document, error) {
	if userID == "" || imageKey == "" {
		return Document{}, ErrInvalidInput
	}
	if !docType.Valid() {
		return Document{}, fmt.Errorf("%w: unknown document type %q", ErrInvalidInput, docType)
	}
	return s.create(ctx, userID, docType, imageKey)
}

func (s *Service) create(ctx context.Context, userID string, docType Type, imageKey string) (Document, error) {
	now := time.Now().UTC()
	doc := Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      docType,
		Status:    StatusUploaded,
		ImageKey:  imageKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	if err := s.appendHistory(ctx, doc.ID, userID, ActionUploaded, nil); err != nil {
		return Document{}, err
	}
	telemetry.Info("document.created", map[string]any{
		"document_id":   doc.ID,
		"document_type": string(docType),
		"image_key":     imageKey,
	})
	return doc, nil
}

// Get returns a document with its extracted data and a short-lived signed
// preview URL (empty when the store cannot issue one).
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, ExtractedData, string, error) {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return Document{}, ExtractedData{}, "", err
	}
	data, err := s.Repo.GetData(ctx, documentID)
	if err != nil {
		return Document{}, ExtractedData{}, "", err
	}

	previewURL := ""
	if issuer, ok := s.Store.(object.SignedURLIssuer); ok {
		url, err := issuer.SignedGetURL(ctx, doc.ImageKey, previewURLTTL)
		if err != nil {
			telemetry.Error("document.preview_url", map[string]any{
				"document_id": documentID,
				"err":         err.Error(),
			})
		} else {
			previewURL = url
		}
	}
	return doc, data, previewURL, nil
}

// List returns the user's documents newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Stats returns per-status counts for the user's documents.
func (s *Service) Stats(ctx context.Context, userID string) (map[Status]int, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.CountByStatus(ctx, userID)
}

// Status returns the current lifecycle state, for client polling.
func (s *Service) Status(ctx context.Context, userID, documentID string) (Status, error) {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return "", err
	}
	return doc.Status, nil
}

// History lists the audit log for a document the user owns.
func (s *Service) History(ctx context.Context, userID, documentID string) ([]HistoryEntry, error) {
	if _, err := s.Repo.GetByID(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.Repo.ListHistory(ctx, documentID)
}

// SaveFields overwrites the extracted fields with operator-entered values and
// records a modified entry carrying the before/after snapshot.
func (s *Service) SaveFields(ctx context.Context, userID, documentID string, name string, birthDate *string, address string) error {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if !doc.Status.Editable() {
		return ErrNotEditable
	}
	if birthDate != nil {
		if _, err := time.Parse(dateLayout, *birthDate); err != nil {
			return fmt.Errorf("%w: birth date must be YYYY-MM-DD", ErrInvalidInput)
		}
	}

	old, err := s.Repo.GetData(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdateFields(ctx, documentID, name, birthDate, address); err != nil {
		return err
	}

	changes := map[string]any{
		"old": fieldSnapshot(old.Name, old.BirthDate, old.Address),
		"new": fieldSnapshot(name, birthDate, address),
	}
	return s.appendHistory(ctx, documentID, userID, ActionModified, changes)
}

// Confirm marks the document's extracted data as reviewed and correct. Only
// confirmed documents are eligible for batch export.
func (s *Service) Confirm(ctx context.Context, userID, documentID string) error {
	return s.act(ctx, userID, documentID, StatusConfirmed, ActionConfirmed)
}

// Reject sends the document back as a first-pass reviewer rejection.
func (s *Service) Reject(ctx context.Context, userID, documentID string) error {
	return s.act(ctx, userID, documentID, StatusRejected, ActionRejected)
}

// Review records a successful second-pass re-examination of a confirmed
// document.
func (s *Service) Review(ctx context.Context, userID, documentID string) error {
	return s.act(ctx, userID, documentID, StatusReviewed, ActionReviewed)
}

// ReviewReject records a failed second-pass re-examination.
func (s *Service) ReviewReject(ctx context.Context, userID, documentID string) error {
	return s.act(ctx, userID, documentID, StatusReviewRejected, ActionReviewRejected)
}

func (s *Service) act(ctx context.Context, userID, documentID string, to Status, action Action) error {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if !CanTransition(doc.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, doc.Status, to)
	}
	ok, err := s.Repo.TransitionStatus(ctx, documentID, []Status{doc.Status}, to)
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race with a concurrent transition.
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, doc.Status, to)
	}
	if err := s.appendHistory(ctx, documentID, userID, action, nil); err != nil {
		return err
	}
	telemetry.Info("document.status", map[string]any{
		"document_id": documentID,
		"from":        string(doc.Status),
		"to":          string(to),
		"action":      string(action),
	})
	return nil
}

func (s *Service) appendHistory(ctx context.Context, documentID, operatorID string, action Action, changes map[string]any) error {
	return s.Repo.AppendHistory(ctx, HistoryEntry{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		OperatorID: operatorID,
		Action:     action,
		Changes:    changes,
		CreatedAt:  time.Now().UTC(),
	})
}

func fieldSnapshot(name string, birthDate *string, address string) map[string]any {
	snap := map[string]any{
		"name":       name,
		"birth_date": nil,
		"address":    address,
	}
	if birthDate != nil {
		snap["birth_date"] = *birthDate
	}
	return snap
}
