package documents

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docverify-backend/internal/shared/server/middleware"
	"docverify-backend/internal/shared/server/respond"
)

const maxUploadSize = 5 << 20 // 5MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc     *Service
	limiter *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, limiter: newPollLimiter(pollLimitWindow, nil)}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.POST("/documents/from-key", h.createFromKey)
	rg.GET("/documents", h.list)
	rg.GET("/documents/stats", h.stats)
	rg.GET("/documents/:id", h.detail)
	rg.GET("/documents/:id/status", h.status)
	rg.GET("/documents/:id/history", h.history)
	rg.PUT("/documents/:id/data", h.saveData)
	rg.POST("/documents/:id/confirm", h.confirm)
	rg.POST("/documents/:id/reject", h.reject)
	rg.POST("/documents/:id/review", h.review)
	rg.POST("/documents/:id/review-reject", h.reviewReject)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	docType := Type(strings.TrimSpace(c.PostForm("documentType")))
	if !docType.Valid() {
		respond.Error(c, http.StatusBadRequest, "validation_error", "documentType must be mynumber_card or drivers_license", nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), userID, docType, fileHeader.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to upload document", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(doc))
}

type createFromKeyRequest struct {
	DocumentType Type   `json:"documentType"`
	ImageKey     string `json:"imageKey"`
}

func (h *Handler) createFromKey(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createFromKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.ImageKey = strings.TrimSpace(req.ImageKey)
	if req.ImageKey == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "imageKey is required", nil)
		return
	}

	doc, err := h.Svc.Register(c.Request.Context(), userID, req.DocumentType, req.ImageKey)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create document", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	docs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) stats(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	counts, err := h.Svc.Stats(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load stats", nil)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"total":          sumCounts(counts),
		"pending":        counts[StatusUploaded] + counts[StatusOCRProcessing] + counts[StatusOCRCompleted],
		"confirmed":      counts[StatusConfirmed],
		"rejected":       counts[StatusRejected],
		"reviewed":       counts[StatusReviewed],
		"reviewRejected": counts[StatusReviewRejected],
	})
}

func (h *Handler) detail(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")

	doc, data, previewURL, err := h.Svc.Get(c.Request.Context(), userID, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch document", nil)
		return
	}

	respond.JSON(c, http.StatusOK, toDetailResponse(doc, data, previewURL))
}

func (h *Handler) status(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")

	if !h.limiter.Allow(userID, documentID) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "poll interval too short", nil)
		return
	}

	status, err := h.Svc.Status(c.Request.Context(), userID, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch status", nil)
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{"status": status})
}

func (h *Handler) history(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")

	entries, err := h.Svc.History(c.Request.Context(), userID, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch history", nil)
		return
	}

	respond.JSON(c, http.StatusOK, toHistoryResponse(entries))
}

type saveDataRequest struct {
	Name      string  `json:"name"`
	BirthDate *string `json:"birthDate"`
	Address   string  `json:"address"`
}

func (h *Handler) saveData(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")

	var req saveDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.BirthDate != nil && strings.TrimSpace(*req.BirthDate) == "" {
		req.BirthDate = nil
	}

	err := h.Svc.SaveFields(c.Request.Context(), userID, documentID, req.Name, req.BirthDate, req.Address)
	if err != nil {
		h.respondActionError(c, err, "failed to save document data")
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{"saved": true})
}

func (h *Handler) confirm(c *gin.Context) {
	h.action(c, h.Svc.Confirm, "failed to confirm document")
}

func (h *Handler) reject(c *gin.Context) {
	h.action(c, h.Svc.Reject, "failed to reject document")
}

func (h *Handler) review(c *gin.Context) {
	h.action(c, h.Svc.Review, "failed to review document")
}

func (h *Handler) reviewReject(c *gin.Context) {
	h.action(c, h.Svc.ReviewReject, "failed to review-reject document")
}

func (h *Handler) action(c *gin.Context, fn func(ctx context.Context, userID, documentID string) error, msg string) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	if err := fn(c.Request.Context(), userID, documentID); err != nil {
		h.respondActionError(c, err, msg)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) respondActionError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotEditable), errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, "invalid_state", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	}
}

func sumCounts(counts map[Status]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
