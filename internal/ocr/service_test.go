package ocr

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"docverify-backend/internal/documents"
	"docverify-backend/internal/vision"
)

const licenseText = "氏名　山田太郎\n昭和55年4月1日生\n住所　東京都千代田区1-2-3丸の内ビル"

type stubDetector struct {
	text string
	err  error
}

func (d *stubDetector) DetectDocumentText(ctx context.Context, base64Image string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return d.text, nil
}

type plainStore struct{}

func (plainStore) Save(ctx context.Context, userID, fileName string, r io.Reader) (string, int64, string, error) {
	return userID + "/" + fileName, 0, "image/jpeg", nil
}

func (plainStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("jpeg-bytes")), nil
}

func seedDocument(t *testing.T, repo *documents.MemoryRepo, status documents.Status) documents.Document {
	t.Helper()
	doc := documents.Document{
		ID:        "doc-1",
		UserID:    "user-1",
		Type:      documents.TypeDriversLicense,
		Status:    status,
		ImageKey:  "user-1/license.jpg",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return doc
}

func TestExtractSuccess(t *testing.T) {
	repo := documents.NewMemoryRepo()
	doc := seedDocument(t, repo, documents.StatusUploaded)
	svc := &Service{Repo: repo, Store: plainStore{}, Vision: &stubDetector{text: licenseText}}

	result, err := svc.Extract(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.Data == nil {
		t.Fatalf("result = %+v, want data payload", result)
	}
	if result.Data.Name == nil || *result.Data.Name != "山田太郎" {
		t.Errorf("name = %v", result.Data.Name)
	}
	if result.Data.BirthDate == nil || *result.Data.BirthDate != "1980-04-01" {
		t.Errorf("birthDate = %v", result.Data.BirthDate)
	}
	if result.Data.Address == nil || !strings.HasPrefix(*result.Data.Address, "東京都千代田区") {
		t.Errorf("address = %v", result.Data.Address)
	}

	got, err := repo.GetByID(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != documents.StatusOCRCompleted {
		t.Errorf("status = %q, want %q", got.Status, documents.StatusOCRCompleted)
	}

	data, err := repo.GetData(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if data.Name != "山田太郎" {
		t.Errorf("stored name = %q", data.Name)
	}
	if data.OCRExecutedAt == nil {
		t.Error("expected ocr_executed_at to be set")
	}
	if data.OCRErrorMessage != nil {
		t.Errorf("stored error message = %v", data.OCRErrorMessage)
	}

	entries, err := repo.ListHistory(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != documents.ActionOCRExtracted {
		t.Fatalf("history = %+v", entries)
	}
}

func TestExtractNotConfigured(t *testing.T) {
	repo := documents.NewMemoryRepo()
	doc := seedDocument(t, repo, documents.StatusUploaded)
	svc := &Service{Repo: repo, Store: plainStore{}, Vision: nil}

	result, err := svc.Extract(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.Success || !result.Fallback || result.ErrorCode != CodeNotConfigured {
		t.Fatalf("result = %+v", result)
	}

	got, _ := repo.GetByID(context.Background(), "user-1", doc.ID)
	if got.Status != documents.StatusUploaded {
		t.Errorf("status = %q, want unchanged uploaded", got.Status)
	}
}

func TestExtractAlreadyProcessing(t *testing.T) {
	repo := documents.NewMemoryRepo()
	doc := seedDocument(t, repo, documents.StatusOCRProcessing)
	svc := &Service{Repo: repo, Store: plainStore{}, Vision: &stubDetector{text: licenseText}}

	result, err := svc.Extract(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.Success || result.Fallback || result.ErrorCode != CodeInProgress {
		t.Fatalf("result = %+v", result)
	}

	got, _ := repo.GetByID(context.Background(), "user-1", doc.ID)
	if got.Status != documents.StatusOCRProcessing {
		t.Errorf("status = %q, want untouched ocr_processing", got.Status)
	}
}

func TestExtractRateLimitedRevertsToUploaded(t *testing.T) {
	repo := documents.NewMemoryRepo()
	doc := seedDocument(t, repo, documents.StatusUploaded)
	svc := &Service{Repo: repo, Store: plainStore{}, Vision: &stubDetector{err: vision.ErrRateLimited}}

	result, err := svc.Extract(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.Success || !result.Fallback || result.ErrorCode != CodeRateLimitExceeded {
		t.Fatalf("result = %+v", result)
	}

	got, _ := repo.GetByID(context.Background(), "user-1", doc.ID)
	if got.Status != documents.StatusUploaded {
		t.Errorf("status = %q, want reverted to uploaded", got.Status)
	}
	data, _ := repo.GetData(context.Background(), doc.ID)
	if data.OCRErrorMessage == nil || *data.OCRErrorMessage != CodeRateLimitExceeded {
		t.Errorf("error message = %v", data.OCRErrorMessage)
	}
}

func TestExtractNoText(t *testing.T) {
	repo := documents.NewMemoryRepo()
	doc := seedDocument(t, repo, documents.StatusUploaded)
	svc := &Service{Repo: repo, Store: plainStore{}, Vision: &stubDetector{err: vision.ErrNoText}}

	result, err := svc.Extract(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.ErrorCode != CodeNoText || !result.Fallback {
		t.Fatalf("result = %+v", result)
	}
}

func TestExtractRerunOverwritesData(t *testing.T) {
	repo := documents.NewMemoryRepo()
	doc := seedDocument(t, repo, documents.StatusUploaded)
	detector := &stubDetector{text: licenseText}
	svc := &Service{Repo: repo, Store: plainStore{}, Vision: detector}
	ctx := context.Background()

	if _, err := svc.Extract(ctx, "user-1", doc.ID); err != nil {
		t.Fatalf("first Extract: %v", err)
	}

	detector.text = "氏名　佐藤花子\n平成7年4月30日生\n住所　大阪府大阪市北区1-2"
	result, err := svc.Extract(ctx, "user-1", doc.ID)
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}

	data, _ := repo.GetData(ctx, doc.ID)
	if data.Name != "佐藤花子" {
		t.Errorf("name = %q, want overwritten", data.Name)
	}
	if data.BirthDate == nil || *data.BirthDate != "1995-04-30" {
		t.Errorf("birthDate = %v", data.BirthDate)
	}

	entries, _ := repo.ListHistory(ctx, doc.ID)
	if len(entries) != 2 {
		t.Fatalf("expected two ocr_extracted entries, got %d", len(entries))
	}
}

func TestExtractUnknownDocument(t *testing.T) {
	repo := documents.NewMemoryRepo()
	svc := &Service{Repo: repo, Store: plainStore{}, Vision: &stubDetector{text: licenseText}}

	_, err := svc.Extract(context.Background(), "user-1", "missing")
	if err == nil {
		t.Fatal("expected error for unknown document")
	}
}
