package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"docverify-backend/internal/documents"
	"docverify-backend/internal/fields"
	"docverify-backend/internal/shared/metrics"
	"docverify-backend/internal/shared/storage/object"
	"docverify-backend/internal/shared/telemetry"
	"docverify-backend/internal/vision"
)

// Error codes returned to the client. Any of these means the document was
// reverted to uploaded for manual entry.
const (
	CodeNotConfigured     = "OCR_NOT_CONFIGURED"
	CodeInProgress        = "OCR_IN_PROGRESS"
	CodeRateLimitExceeded = "OCR_RATE_LIMIT_EXCEEDED"
	CodeNoText            = "OCR_NO_TEXT"
	CodeAPIError          = "OCR_API_ERROR"
	CodeImageFetchFailed  = "OCR_IMAGE_FETCH_FAILED"
	CodeUnexpected        = "UNEXPECTED_ERROR"
)

// imageURLTTL is how long the internal signed fetch URL stays valid.
const imageURLTTL = 60 * time.Second

// ExtractedFields is the data payload of a successful extraction. Fields the
// detector could not find are omitted for manual entry.
type ExtractedFields struct {
	Name      *string `json:"name,omitempty"`
	BirthDate *string `json:"birthDate,omitempty"`
	Address   *string `json:"address,omitempty"`
}

// Result is the outcome of one extraction attempt. Fallback signals the
// client to switch to manual entry rather than surface a hard failure.
type Result struct {
	Success   bool             `json:"success"`
	Fallback  bool             `json:"fallback,omitempty"`
	ErrorCode string           `json:"error,omitempty"`
	Data      *ExtractedFields `json:"data,omitempty"`
}

// TextDetector runs OCR on a base64-encoded image.
type TextDetector interface {
	DetectDocumentText(ctx context.Context, base64Image string) (string, error)
}

// Service orchestrates an OCR run: image fetch, text detection, field
// extraction and the document state transitions around them.
type Service struct {
	Repo       documents.Repo
	Store      object.ObjectStore
	Vision     TextDetector
	HTTPClient *http.Client
}

var ocrStartStates = []documents.Status{documents.StatusUploaded, documents.StatusOCRCompleted}

// Extract runs OCR for the given document. State handling: the document is
// moved to ocr_processing up front; on success it lands in ocr_completed with
// fresh extracted data, on any failure it reverts to uploaded with the error
// code stored for the operator.
func (s *Service) Extract(ctx context.Context, userID, documentID string) (Result, error) {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return Result{}, err
	}

	if s.Vision == nil {
		telemetry.Info("ocr.not_configured", map[string]any{"document_id": documentID})
		metrics.IncOCRFallback()
		return Result{Success: false, Fallback: true, ErrorCode: CodeNotConfigured}, nil
	}

	started, err := s.Repo.TransitionStatus(ctx, documentID, ocrStartStates, documents.StatusOCRProcessing)
	if err != nil {
		return Result{}, err
	}
	if !started {
		telemetry.Info("ocr.already_running", map[string]any{"document_id": documentID})
		return Result{Success: false, ErrorCode: CodeInProgress}, nil
	}

	startedAt := time.Now()
	metrics.IncOCRStarted()

	encoded, err := s.loadImageBase64(ctx, doc.ImageKey)
	if err != nil {
		return s.fail(ctx, documentID, CodeImageFetchFailed, err)
	}

	text, err := s.Vision.DetectDocumentText(ctx, encoded)
	if err != nil {
		switch {
		case errors.Is(err, vision.ErrRateLimited):
			return s.fail(ctx, documentID, CodeRateLimitExceeded, err)
		case errors.Is(err, vision.ErrNoText):
			return s.fail(ctx, documentID, CodeNoText, err)
		default:
			return s.fail(ctx, documentID, CodeAPIError, err)
		}
	}

	name, _ := fields.Name(text)
	birthDate, hasBirth := fields.BirthDate(text)
	address, _ := fields.Address(text)

	var birthPtr *string
	if hasBirth {
		birthPtr = &birthDate
	}

	executedAt := time.Now().UTC()
	if err := s.Repo.SetOCRResult(ctx, documentID, name, birthPtr, address, executedAt); err != nil {
		return Result{}, err
	}
	ok, err := s.Repo.TransitionStatus(ctx, documentID,
		[]documents.Status{documents.StatusOCRProcessing}, documents.StatusOCRCompleted)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		// Someone moved the document out from under us.
		return Result{Success: false, ErrorCode: CodeInProgress}, nil
	}

	if err := s.Repo.AppendHistory(ctx, historyEntry(documentID, userID, map[string]any{
		"extracted_fields": extractedFieldNames(name, hasBirth, address),
	})); err != nil {
		return Result{}, err
	}

	metrics.IncOCRCompleted()
	metrics.ObserveOCRDurationMs(float64(time.Since(startedAt).Microseconds()) / 1000.0)
	telemetry.Info("ocr.completed", map[string]any{
		"document_id": documentID,
		"fields":      extractedFieldNames(name, hasBirth, address),
		"duration_ms": time.Since(startedAt).Milliseconds(),
	})

	data := &ExtractedFields{BirthDate: birthPtr}
	if name != "" {
		data.Name = &name
	}
	if address != "" {
		data.Address = &address
	}
	return Result{Success: true, Data: data}, nil
}

// fail reverts the document to uploaded, records the error code and maps the
// failure to a fallback result. The underlying error is logged, never
// returned to the client.
func (s *Service) fail(ctx context.Context, documentID, code string, cause error) (Result, error) {
	telemetry.Error("ocr.failed", map[string]any{
		"document_id": documentID,
		"code":        code,
		"err":         cause.Error(),
	})
	if err := s.Repo.RecordOCRFailure(ctx, documentID, code); err != nil {
		return Result{}, err
	}
	metrics.IncOCRFallback()
	return Result{Success: false, Fallback: true, ErrorCode: code}, nil
}

// loadImageBase64 reads the document image and base64-encodes it. When the
// store can mint signed URLs the image is fetched over HTTP the way an
// external OCR worker would; otherwise it is read straight from the store.
func (s *Service) loadImageBase64(ctx context.Context, imageKey string) (string, error) {
	rc, err := s.openImage(ctx, imageKey)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var sb strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	buf := make([]byte, 8192)
	if _, err := io.CopyBuffer(enc, rc, buf); err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	return sb.String(), nil
}

func (s *Service) openImage(ctx context.Context, imageKey string) (io.ReadCloser, error) {
	issuer, ok := s.Store.(object.SignedURLIssuer)
	if !ok {
		return s.Store.Open(ctx, imageKey)
	}

	url, err := issuer.SignedGetURL(ctx, imageKey, imageURLTTL)
	if err != nil {
		return nil, fmt.Errorf("sign image url: %w", err)
	}

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func historyEntry(documentID, operatorID string, changes map[string]any) documents.HistoryEntry {
	return documents.HistoryEntry{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		OperatorID: operatorID,
		Action:     documents.ActionOCRExtracted,
		Changes:    changes,
		CreatedAt:  time.Now().UTC(),
	}
}

func extractedFieldNames(name string, hasBirth bool, address string) []string {
	out := make([]string, 0, 3)
	if name != "" {
		out = append(out, "name")
	}
	if hasBirth {
		out = append(out, "birth_date")
	}
	if address != "" {
		out = append(out, "address")
	}
	return out
}
