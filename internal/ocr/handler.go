package ocr

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"docverify-backend/internal/documents"
	"docverify-backend/internal/shared/server/middleware"
	"docverify-backend/internal/shared/server/respond"
	"docverify-backend/internal/shared/telemetry"
)

// Handler exposes the OCR extraction endpoint.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches OCR routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ocr/extract", h.extract)
}

type extractRequest struct {
	DocumentID string `json:"documentId"`
}

// extract runs OCR for one document. Extraction failures come back as HTTP
// 200 with success=false and fallback=true so the client switches to manual
// entry instead of showing an error page. Only bad input and unknown
// documents are HTTP errors.
func (h *Handler) extract(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	if req.DocumentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "documentId is required", nil)
		return
	}

	c.Set("documentId", req.DocumentID)

	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("ocr.panic", map[string]any{
				"document_id": req.DocumentID,
				"error":       rec,
				"stack":       string(debug.Stack()),
			})
			respond.JSON(c, http.StatusOK, Result{Success: false, Fallback: true, ErrorCode: CodeUnexpected})
		}
	}()

	result, err := h.Svc.Extract(c.Request.Context(), userID, req.DocumentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		telemetry.Error("ocr.internal", map[string]any{
			"document_id": req.DocumentID,
			"err":         err.Error(),
		})
		respond.JSON(c, http.StatusOK, Result{Success: false, Fallback: true, ErrorCode: CodeUnexpected})
		return
	}

	respond.JSON(c, http.StatusOK, result)
}
