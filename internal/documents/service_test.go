package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type stubStore struct {
	savedKey  string
	signedURL string
	signErr   error
}

func (s *stubStore) Save(ctx context.Context, userID, fileName string, r io.Reader) (string, int64, string, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return "", 0, "", err
	}
	key := userID + "/" + fileName
	s.savedKey = key
	return key, n, "image/jpeg", nil
}

func (s *stubStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("image-bytes")), nil
}

func (s *stubStore) SignedGetURL(ctx context.Context, storageKey string, ttl time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return s.signedURL, nil
}

func newTestService() (*Service, *MemoryRepo, *stubStore) {
	repo := NewMemoryRepo()
	store := &stubStore{signedURL: "https://signed.example/obj"}
	return &Service{Repo: repo, Store: store}, repo, store
}

func TestServiceUpload(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "user-1", TypeDriversLicense, "license.jpg", strings.NewReader("jpegdata"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Status != StatusUploaded {
		t.Errorf("status = %q, want %q", doc.Status, StatusUploaded)
	}
	if doc.ImageKey != store.savedKey {
		t.Errorf("imageKey = %q, want %q", doc.ImageKey, store.savedKey)
	}

	entries, err := svc.History(ctx, "user-1", doc.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != ActionUploaded {
		t.Fatalf("history = %+v, want single uploaded entry", entries)
	}
}

func TestServiceUploadRejectsBadType(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Upload(context.Background(), "user-1", Type("passport"), "a.jpg", strings.NewReader("x"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestServiceRegister(t *testing.T) {
	svc, _, _ := newTestService()
	doc, err := svc.Register(context.Background(), "user-1", TypeMyNumberCard, "user-1/uploads/x.png")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if doc.ImageKey != "user-1/uploads/x.png" {
		t.Errorf("imageKey = %q", doc.ImageKey)
	}
	if doc.Status != StatusUploaded {
		t.Errorf("status = %q, want %q", doc.Status, StatusUploaded)
	}
}

func TestServiceGetOwnerScoped(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	doc, err := svc.Register(ctx, "user-1", TypeMyNumberCard, "k")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, _, err := svc.Get(ctx, "user-2", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get by other user: err = %v, want ErrNotFound", err)
	}

	got, _, previewURL, err := svc.Get(ctx, "user-1", doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != doc.ID {
		t.Errorf("got wrong document %q", got.ID)
	}
	if previewURL != "https://signed.example/obj" {
		t.Errorf("previewURL = %q", previewURL)
	}
}

func TestServiceGetPreviewURLFailureIsNotFatal(t *testing.T) {
	svc, _, store := newTestService()
	store.signErr = errors.New("presign down")
	ctx := context.Background()

	doc, _ := svc.Register(ctx, "user-1", TypeMyNumberCard, "k")
	_, _, previewURL, err := svc.Get(ctx, "user-1", doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if previewURL != "" {
		t.Errorf("previewURL = %q, want empty", previewURL)
	}
}

func TestServiceSaveFields(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	doc, _ := svc.Register(ctx, "user-1", TypeDriversLicense, "k")
	birth := "1980-04-01"
	if err := svc.SaveFields(ctx, "user-1", doc.ID, "山田太郎", &birth, "東京都千代田区1-2-3"); err != nil {
		t.Fatalf("SaveFields: %v", err)
	}

	_, data, _, err := svc.Get(ctx, "user-1", doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if data.Name != "山田太郎" {
		t.Errorf("name = %q", data.Name)
	}
	if data.BirthDate == nil || *data.BirthDate != "1980-04-01" {
		t.Errorf("birthDate = %v", data.BirthDate)
	}

	entries, _ := svc.History(ctx, "user-1", doc.ID)
	if entries[0].Action != ActionModified {
		t.Errorf("latest action = %q, want %q", entries[0].Action, ActionModified)
	}
	if _, ok := entries[0].Changes["old"]; !ok {
		t.Errorf("expected old snapshot in changes, got %+v", entries[0].Changes)
	}
}

func TestServiceSaveFieldsValidatesBirthDate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	doc, _ := svc.Register(ctx, "user-1", TypeDriversLicense, "k")
	bad := "1980/04/01"
	err := svc.SaveFields(ctx, "user-1", doc.ID, "x", &bad, "y")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestServiceSaveFieldsRejectsNonEditable(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	doc, _ := svc.Register(ctx, "user-1", TypeDriversLicense, "k")
	if err := svc.Confirm(ctx, "user-1", doc.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	err := svc.SaveFields(ctx, "user-1", doc.ID, "x", nil, "y")
	if !errors.Is(err, ErrNotEditable) {
		t.Fatalf("err = %v, want ErrNotEditable", err)
	}
}

func TestServiceLifecycleActions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	doc, _ := svc.Register(ctx, "user-1", TypeMyNumberCard, "k")

	if err := svc.Review(ctx, "user-1", doc.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("review from uploaded: err = %v, want ErrInvalidTransition", err)
	}

	if err := svc.Confirm(ctx, "user-1", doc.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	status, _ := svc.Status(ctx, "user-1", doc.ID)
	if status != StatusConfirmed {
		t.Fatalf("status = %q, want %q", status, StatusConfirmed)
	}

	if err := svc.Confirm(ctx, "user-1", doc.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double confirm: err = %v, want ErrInvalidTransition", err)
	}

	if err := svc.Review(ctx, "user-1", doc.ID); err != nil {
		t.Fatalf("Review: %v", err)
	}
	status, _ = svc.Status(ctx, "user-1", doc.ID)
	if status != StatusReviewed {
		t.Fatalf("status = %q, want %q", status, StatusReviewed)
	}
}

func TestServiceRejectThenTerminal(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	doc, _ := svc.Register(ctx, "user-1", TypeMyNumberCard, "k")
	if err := svc.Reject(ctx, "user-1", doc.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if err := svc.Confirm(ctx, "user-1", doc.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirm after reject: err = %v, want ErrInvalidTransition", err)
	}
}

func TestServiceStats(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	a, _ := svc.Register(ctx, "user-1", TypeMyNumberCard, "k1")
	svc.Register(ctx, "user-1", TypeDriversLicense, "k2")
	svc.Register(ctx, "user-2", TypeDriversLicense, "k3")
	svc.Confirm(ctx, "user-1", a.ID)

	counts, err := svc.Stats(ctx, "user-1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if counts[StatusUploaded] != 1 || counts[StatusConfirmed] != 1 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestServiceListNewestFirst(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, _ := svc.Register(ctx, "user-1", TypeMyNumberCard, "k1")
	time.Sleep(2 * time.Millisecond)
	second, _ := svc.Register(ctx, "user-1", TypeMyNumberCard, "k2")

	docs, err := svc.List(ctx, "user-1", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len = %d", len(docs))
	}
	if docs[0].ID != second.ID || docs[1].ID != first.ID {
		t.Errorf("expected newest first, got %q then %q", docs[0].ID, docs[1].ID)
	}
}
