package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo, used when no database is
// configured and in tests.
type MemoryRepo struct {
	mu      sync.RWMutex
	docs    map[string]Document      // documentID -> document
	data    map[string]ExtractedData // documentID -> extracted data
	history map[string][]HistoryEntry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs:    make(map[string]Document),
		data:    make(map[string]ExtractedData),
		history: make(map[string][]HistoryEntry),
	}
}

// Create stores the document with its empty extracted-data row.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	r.data[doc.ID] = ExtractedData{DocumentID: doc.ID, UpdatedAt: doc.CreatedAt}
	return nil
}

// GetByID returns a document scoped to its owner.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[documentID]
	if !ok || doc.UserID != userID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListByUser lists a user's documents newest-first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Document
	for _, doc := range r.docs {
		if doc.UserID == userID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByStatus returns per-status counts for a user.
func (r *MemoryRepo) CountByStatus(ctx context.Context, userID string) (map[Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Status]int)
	for _, doc := range r.docs {
		if doc.UserID == userID {
			counts[doc.Status]++
		}
	}
	return counts, nil
}

// GetData returns the extracted-data row for a document.
func (r *MemoryRepo) GetData(ctx context.Context, documentID string) (ExtractedData, error) {
	if err := ctx.Err(); err != nil {
		return ExtractedData{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.data[documentID]
	if !ok {
		return ExtractedData{}, ErrNotFound
	}
	return data, nil
}

// UpdateFields overwrites the manually editable fields.
func (r *MemoryRepo) UpdateFields(ctx context.Context, documentID string, name string, birthDate *string, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.data[documentID]
	if !ok {
		return ErrNotFound
	}
	data.Name = name
	data.BirthDate = birthDate
	data.Address = address
	data.UpdatedAt = time.Now().UTC()
	r.data[documentID] = data
	return nil
}

// SetOCRResult overwrites the extracted fields and clears the error message.
func (r *MemoryRepo) SetOCRResult(ctx context.Context, documentID string, name string, birthDate *string, address string, executedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.data[documentID]
	if !ok {
		return ErrNotFound
	}
	data.Name = name
	data.BirthDate = birthDate
	data.Address = address
	data.OCRExecutedAt = &executedAt
	data.OCRErrorMessage = nil
	data.UpdatedAt = executedAt
	r.data[documentID] = data
	return nil
}

// RecordOCRFailure reverts the document to uploaded and stores the message.
func (r *MemoryRepo) RecordOCRFailure(ctx context.Context, documentID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	doc.Status = StatusUploaded
	doc.UpdatedAt = now
	r.docs[documentID] = doc

	data := r.data[documentID]
	data.OCRErrorMessage = &message
	data.UpdatedAt = now
	r.data[documentID] = data
	return nil
}

// TransitionStatus conditionally moves a document to the target state.
func (r *MemoryRepo) TransitionStatus(ctx context.Context, documentID string, from []Status, to Status) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, s := range from {
		if doc.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	doc.Status = to
	doc.UpdatedAt = time.Now().UTC()
	r.docs[documentID] = doc
	return true, nil
}

// AppendHistory appends an audit log entry.
func (r *MemoryRepo) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[entry.DocumentID] = append(r.history[entry.DocumentID], entry)
	return nil
}

// ListHistory returns entries newest-first.
func (r *MemoryRepo) ListHistory(ctx context.Context, documentID string) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := append([]HistoryEntry(nil), r.history[documentID]...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

// ConfirmedBetween selects confirmed documents inside the window together
// with the latest confirm action, mirroring the Postgres lateral join.
func (r *MemoryRepo) ConfirmedBetween(ctx context.Context, start, end time.Time) ([]ConfirmedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ConfirmedDocument
	for id, doc := range r.docs {
		if doc.Status != StatusConfirmed {
			continue
		}
		if doc.UpdatedAt.Before(start) || doc.UpdatedAt.After(end) {
			continue
		}
		cd := ConfirmedDocument{Document: doc, Data: r.data[id]}
		for _, entry := range r.history[id] {
			if entry.Action != ActionConfirmed {
				continue
			}
			if cd.ConfirmedAt == nil || entry.CreatedAt.After(*cd.ConfirmedAt) {
				at := entry.CreatedAt
				cd.ConfirmedAt = &at
				cd.ConfirmedBy = entry.OperatorID
			}
		}
		out = append(out, cd)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Document.CreatedAt.Before(out[j].Document.CreatedAt)
	})
	return out, nil
}

var (
	_ Repo            = (*MemoryRepo)(nil)
	_ ConfirmedSource = (*MemoryRepo)(nil)
)
