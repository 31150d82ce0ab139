package settings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loticredit/loticredit/internal/validation"
)

// Handler provides HTTP endpoints for consumer and lender settings.
type Handler struct {
	service *Service
}

// NewHandler creates a new settings handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the settings routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/consumers/:id/settings", h.GetConsumer)
	r.PUT("/consumers/:id/settings", h.PutConsumer)
	r.GET("/lenders/:id/settings", h.GetLender)
	r.PUT("/lenders/:id/settings", h.PutLender)
}

// RegisterLegacyRoutes mounts the original dashboards' save endpoints,
// which carry the owner id in the body.
func (h *Handler) RegisterLegacyRoutes(r *gin.RouterGroup) {
	r.POST("/save-settings", h.SaveConsumerLegacy)
	r.POST("/lender/save-settings", h.SaveLenderLegacy)
}

// GetConsumer handles GET /v1/consumers/:id/settings
func (h *Handler) GetConsumer(c *gin.Context) {
	cs, err := h.service.Consumer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": cs})
}

// PutConsumer handles PUT /v1/consumers/:id/settings
func (h *Handler) PutConsumer(c *gin.Context) {
	var cs ConsumerSettings
	if !bind(c, &cs) {
		return
	}
	cs.ConsumerID = c.Param("id")
	h.saveConsumer(c, &cs)
}

// SaveConsumerLegacy handles POST /api/save-settings
func (h *Handler) SaveConsumerLegacy(c *gin.Context) {
	var cs ConsumerSettings
	if !bind(c, &cs) {
		return
	}
	h.saveConsumer(c, &cs)
}

func (h *Handler) saveConsumer(c *gin.Context, cs *ConsumerSettings) {
	saved, err := h.service.SaveConsumer(c.Request.Context(), cs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": saved})
}

// GetLender handles GET /v1/lenders/:id/settings
func (h *Handler) GetLender(c *gin.Context) {
	ls, err := h.service.Lender(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": ls})
}

// PutLender handles PUT /v1/lenders/:id/settings
func (h *Handler) PutLender(c *gin.Context) {
	var ls LenderSettings
	if !bind(c, &ls) {
		return
	}
	ls.LenderID = c.Param("id")
	h.saveLender(c, &ls)
}

// SaveLenderLegacy handles POST /api/lender/save-settings
func (h *Handler) SaveLenderLegacy(c *gin.Context) {
	var ls LenderSettings
	if !bind(c, &ls) {
		return
	}
	h.saveLender(c, &ls)
}

func (h *Handler) saveLender(c *gin.Context, ls *LenderSettings) {
	saved, err := h.service.SaveLender(c.Request.Context(), ls)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": saved})
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be a JSON settings document",
		})
		return false
	}
	return true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		validation.Respond(c, verrs)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Internal server error"})
}
