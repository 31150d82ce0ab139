package history

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/loticredit/loticredit/internal/score"
)

// Handler provides HTTP endpoints for consumer score history.
type Handler struct {
	service *Service
}

// NewHandler creates a new history handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the consumer score routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/consumers/:id/score", h.RecordScore)
	r.GET("/consumers/:id/score", h.GetLatest)
	r.GET("/consumers/:id/score/history", h.ListHistory)
	r.GET("/consumers/:id/score/trend", h.GetTrend)
}

// RecordScore handles POST /v1/consumers/:id/score
func (h *Handler) RecordScore(c *gin.Context) {
	var req score.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be a JSON factor set",
		})
		return
	}

	snap, err := h.service.Record(c.Request.Context(), c.Param("id"), req.Resolve())
	if err != nil {
		switch {
		case errors.Is(err, score.ErrNonFiniteFactor):
			c.JSON(http.StatusBadRequest, gin.H{"error": "non_finite_factor", "message": err.Error()})
		case errors.Is(err, ErrInvalidConsumer):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to record score"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"snapshot": snap,
		"label":    snap.Rating.Label(),
	})
}

// GetLatest handles GET /v1/consumers/:id/score
func (h *Handler) GetLatest(c *gin.Context) {
	snap, err := h.service.Latest(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No score recorded for this consumer",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to load score"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshot":   snap,
		"label":      snap.Rating.Label(),
		"indicators": score.Indicators(snap.Factors),
	})
}

// ListHistory handles GET /v1/consumers/:id/score/history
func (h *Handler) ListHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	page, err := h.service.History(c.Request.Context(), c.Param("id"), limit, c.Query("cursor"))
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to load history"})
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetTrend handles GET /v1/consumers/:id/score/trend
func (h *Handler) GetTrend(c *gin.Context) {
	n, _ := strconv.Atoi(c.Query("points"))

	trend, err := h.service.Trend(c.Request.Context(), c.Param("id"), n)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No score recorded for this consumer",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to load trend"})
		return
	}

	c.JSON(http.StatusOK, trend)
}
