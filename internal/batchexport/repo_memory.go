package batchexport

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo, used when no database is configured and
// in tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	runs  map[string]Run
	items map[string][]Item
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		runs:  make(map[string]Run),
		items: make(map[string][]Item),
	}
}

func (r *MemoryRepo) CreateRun(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return nil
}

func (r *MemoryRepo) FinalizeRun(ctx context.Context, runID string, status RunStatus, objectKey string, rowCount int, errorDetail *string, finishedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return ErrNotFound
	}
	run.Status = status
	run.ObjectKey = objectKey
	run.RowCount = rowCount
	run.ErrorDetail = errorDetail
	t := finishedAt
	run.FinishedAt = &t
	r.runs[runID] = run
	return nil
}

func (r *MemoryRepo) InsertItems(ctx context.Context, runID string, documentIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, docID := range documentIDs {
		r.items[runID] = append(r.items[runID], Item{ExportID: runID, DocumentID: docID})
	}
	return nil
}

func (r *MemoryRepo) GetRun(ctx context.Context, runID string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[runID]
	if !ok {
		return Run{}, ErrNotFound
	}
	return run, nil
}

func (r *MemoryRepo) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Items returns the recorded items for a run, for tests.
func (r *MemoryRepo) Items(runID string) []Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Item(nil), r.items[runID]...)
}

var _ Repo = (*MemoryRepo)(nil)
