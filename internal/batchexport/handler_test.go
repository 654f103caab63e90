package batchexport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"docverify-backend/internal/documents"
)

func newExportRouter(t *testing.T, token string) (*gin.Engine, *memStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	svc := &Service{Repo: NewMemoryRepo(), Source: documents.NewMemoryRepo(), Store: store}

	r := gin.New()
	NewHandler(svc, token).RegisterRoutes(r.Group("/api/v1"))
	return r, store
}

func TestTriggerRequiresToken(t *testing.T) {
	router, _ := newExportRouter(t, "secret-token")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch-exports", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/batch-exports", nil)
	req.Header.Set("X-Batch-Token", "wrong")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", resp.Code)
	}
}

func TestTriggerUnconfiguredToken(t *testing.T) {
	router, _ := newExportRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch-exports", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.Code)
	}
}

func TestTriggerRunsExport(t *testing.T) {
	router, store := newExportRouter(t, "secret-token")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch-exports", nil)
	req.Header.Set("X-Batch-Token", "secret-token")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		Run runResponse `json:"run"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Run.Status != string(RunStatusSuccess) {
		t.Fatalf("run = %+v", payload.Run)
	}
	if payload.Run.ExportDate != DateKey(time.Now()) {
		t.Errorf("exportDate = %q", payload.Run.ExportDate)
	}
	if store.lastKey == "" {
		t.Error("expected export object to be written")
	}
}

func TestTriggerWithExplicitDate(t *testing.T) {
	router, _ := newExportRouter(t, "secret-token")

	body := strings.NewReader(`{"date":"2025-06-02"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch-exports", body)
	req.Header.Set("X-Batch-Token", "secret-token")
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		Run runResponse `json:"run"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Run.ExportDate != "2025-06-02" {
		t.Errorf("exportDate = %q", payload.Run.ExportDate)
	}
}

func TestTriggerRejectsBadDate(t *testing.T) {
	router, _ := newExportRouter(t, "secret-token")

	body := strings.NewReader(`{"date":"06/02/2025"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batch-exports", body)
	req.Header.Set("X-Batch-Token", "secret-token")
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestListRuns(t *testing.T) {
	router, _ := newExportRouter(t, "secret-token")

	trigger := httptest.NewRequest(http.MethodPost, "/api/v1/batch-exports", nil)
	trigger.Header.Set("X-Batch-Token", "secret-token")
	router.ServeHTTP(httptest.NewRecorder(), trigger)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/batch-exports", nil)
	req.Header.Set("X-Batch-Token", "secret-token")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}

	var runs []runResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
}
