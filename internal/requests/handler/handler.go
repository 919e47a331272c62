// Package handler exposes the operator-facing read API over Request Records.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"prospect_intake_backend/internal/requests/domain"
	"prospect_intake_backend/internal/requests/repository"
	"prospect_intake_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	repo *repository.Repository
}

func New(repo *repository.Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/stats", h.Stats)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/steps", h.ListSteps)
}

// List returns records newest first, filterable by status, whatsapp and
// task_id query parameters.
func (h *Handler) List(c *gin.Context) {
	filter := repository.Filter{
		Whatsapp: c.Query("whatsapp"),
		TaskID:   c.Query("task_id"),
	}

	if status := c.Query("status"); status != "" {
		s := domain.Status(status)
		if !s.Valid() {
			httpkit.Error(c, http.StatusBadRequest, "unknown status", status)
			return
		}
		filter.Status = s
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		filter.Limit = n
	}
	if offset := c.Query("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid offset", nil)
			return
		}
		filter.Offset = n
	}

	records, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to list requests", nil)
		return
	}

	httpkit.OK(c, gin.H{"requests": records, "count": len(records)})
}

// GetByID returns one record with its full step history.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request id", nil)
		return
	}

	rec, err := h.repo.GetWithSteps(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "request not found", nil)
			return
		}
		httpkit.Error(c, http.StatusInternalServerError, "failed to load request", nil)
		return
	}

	httpkit.OK(c, rec)
}

// ListSteps returns only the step history for one record.
func (h *Handler) ListSteps(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request id", nil)
		return
	}

	if _, err := h.repo.Get(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "request not found", nil)
			return
		}
		httpkit.Error(c, http.StatusInternalServerError, "failed to load request", nil)
		return
	}

	steps, err := h.repo.ListSteps(c.Request.Context(), id)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to load steps", nil)
		return
	}

	httpkit.OK(c, gin.H{"steps": steps, "count": len(steps)})
}

// Stats aggregates record counts by status for the operator dashboard.
func (h *Handler) Stats(c *gin.Context) {
	counts, err := h.repo.CountByStatus(c.Request.Context())
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to aggregate requests", nil)
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	httpkit.OK(c, gin.H{"by_status": counts, "total": total})
}
