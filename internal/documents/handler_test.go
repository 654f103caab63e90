package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newDocRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _, _ := newTestService()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc
}

func multipartUpload(t *testing.T, docType, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if docType != "" {
		if err := w.WriteField("documentType", docType); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileName != "" {
		fw, err := w.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	router, _ := newDocRouter(t)

	body, contentType := multipartUpload(t, "drivers_license", "license.jpg", "jpegdata")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var doc DocumentResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Status != StatusUploaded {
		t.Errorf("status = %q", doc.Status)
	}
	if doc.DocumentType != TypeDriversLicense {
		t.Errorf("documentType = %q", doc.DocumentType)
	}
}

func TestUploadEndpointRejectsUnknownType(t *testing.T) {
	router, _ := newDocRouter(t)

	body, contentType := multipartUpload(t, "passport", "p.jpg", "data")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestUploadEndpointRequiresFile(t *testing.T) {
	router, _ := newDocRouter(t)

	body, contentType := multipartUpload(t, "mynumber_card", "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestCreateFromKeyEndpoint(t *testing.T) {
	router, _ := newDocRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/from-key",
		strings.NewReader(`{"documentType":"mynumber_card","imageKey":"user-1/uploads/card.png"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
}

func TestDetailEndpointNotFound(t *testing.T) {
	router, _ := newDocRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestDetailEndpointIncludesDataAndPreview(t *testing.T) {
	router, svc := newDocRouter(t)
	doc, err := svc.Register(context.Background(), "user-1", TypeDriversLicense, "k")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var detail DetailResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.PreviewURL == "" {
		t.Error("expected preview url")
	}
	if !detail.Editable {
		t.Error("uploaded document should be editable")
	}
}

func TestSaveDataEndpointConflictWhenNotEditable(t *testing.T) {
	router, svc := newDocRouter(t)
	doc, _ := svc.Register(context.Background(), "user-1", TypeDriversLicense, "k")
	if err := svc.Confirm(context.Background(), "user-1", doc.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/documents/"+doc.ID+"/data",
		strings.NewReader(`{"name":"山田太郎","address":"東京都"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.Code)
	}
}

func TestConfirmEndpointThenDoubleConfirmConflicts(t *testing.T) {
	router, svc := newDocRouter(t)
	doc, _ := svc.Register(context.Background(), "user-1", TypeDriversLicense, "k")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+doc.ID+"/confirm", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("confirm: status = %d, body = %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+doc.ID+"/confirm", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("double confirm: status = %d, want 409", resp.Code)
	}
}

func TestStatusEndpointRateLimited(t *testing.T) {
	router, svc := newDocRouter(t)
	doc, _ := svc.Register(context.Background(), "user-1", TypeDriversLicense, "k")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID+"/status", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("first poll: status = %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID+"/status", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("second poll: status = %d, want 429", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	router, svc := newDocRouter(t)
	doc, _ := svc.Register(context.Background(), "user-1", TypeDriversLicense, "k")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID+"/history", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}

	var entries []HistoryResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != ActionUploaded {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestStatsEndpoint(t *testing.T) {
	router, svc := newDocRouter(t)
	a, _ := svc.Register(context.Background(), "user-1", TypeMyNumberCard, "k1")
	svc.Register(context.Background(), "user-1", TypeDriversLicense, "k2")
	svc.Confirm(context.Background(), "user-1", a.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/stats", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}

	var stats map[string]int
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats["total"] != 2 || stats["confirmed"] != 1 || stats["pending"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
