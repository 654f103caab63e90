package batchexport

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docverify-backend/internal/shared/server/respond"
)

// Handler exposes batch export trigger and listing endpoints. These are
// operator endpoints guarded by a shared token rather than user JWTs, since
// the nightly scheduler calls them headlessly.
type Handler struct {
	Svc   *Service
	Token string
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, token string) *Handler {
	return &Handler{Svc: svc, Token: token}
}

// RegisterRoutes attaches export routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/batch-exports", h.trigger)
	rg.GET("/batch-exports", h.list)
}

func (h *Handler) authorized(c *gin.Context) bool {
	if h.Token == "" {
		respond.Error(c, http.StatusServiceUnavailable, "not_configured", "batch exports not configured", nil)
		return false
	}
	got := strings.TrimSpace(c.GetHeader("X-Batch-Token"))
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid batch token", nil)
		return false
	}
	return true
}

type runResponse struct {
	ID          string  `json:"id"`
	ExportDate  string  `json:"exportDate"`
	Status      string  `json:"status"`
	ObjectKey   string  `json:"objectKey"`
	RowCount    int     `json:"rowCount"`
	ErrorDetail *string `json:"errorDetail,omitempty"`
	StartedAt   string  `json:"startedAt"`
	FinishedAt  *string `json:"finishedAt,omitempty"`
}

func toRunResponse(run Run) runResponse {
	resp := runResponse{
		ID:          run.ID,
		ExportDate:  run.ExportDate,
		Status:      string(run.Status),
		ObjectKey:   run.ObjectKey,
		RowCount:    run.RowCount,
		ErrorDetail: run.ErrorDetail,
		StartedAt:   run.StartedAt.UTC().Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		s := run.FinishedAt.UTC().Format(time.RFC3339)
		resp.FinishedAt = &s
	}
	return resp
}

type triggerRequest struct {
	Date string `json:"date"`
}

func (h *Handler) trigger(c *gin.Context) {
	if !h.authorized(c) {
		return
	}

	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	at := time.Now()
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Date, JST)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "date must be YYYY-MM-DD", nil)
			return
		}
		at = parsed
	}

	run, err := h.Svc.RunForDate(c.Request.Context(), at)
	if err != nil {
		// The run ledger has the failure recorded; surface the run state.
		respond.JSON(c, http.StatusInternalServerError, gin.H{"run": toRunResponse(run)})
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"run": toRunResponse(run)})
}

func (h *Handler) list(c *gin.Context) {
	if !h.authorized(c) {
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	runs, err := h.Svc.Repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list export runs", nil)
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}
	respond.JSON(c, http.StatusOK, resp)
}
