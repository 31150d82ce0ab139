package lending

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/loticredit/loticredit/internal/score"
	"github.com/loticredit/loticredit/internal/validation"
)

// Handler provides HTTP endpoints for lending operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new lending handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the lending routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/loans", h.CreateProduct)
	r.GET("/lenders/:id/loans", h.ListProducts)
	r.POST("/lenders/:id/applications", h.SubmitApplication)
	r.GET("/lenders/:id/applications", h.ListApplications)
	r.GET("/lenders/:id/portfolio", h.Portfolio)
	r.GET("/applications/:id", h.GetApplication)
	r.PATCH("/applications/:id/status", h.UpdateStatus)
}

// RegisterLegacyRoutes mounts the original dashboard's loan endpoint.
func (h *Handler) RegisterLegacyRoutes(r *gin.RouterGroup) {
	r.POST("/loans", h.CreateProduct)
}

// CreateProduct handles POST /v1/loans
func (h *Handler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be a JSON loan product",
		})
		return
	}

	product, err := h.service.CreateProduct(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"loan": product})
}

// ListProducts handles GET /v1/lenders/:id/loans
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loans": products,
		"count": len(products),
	})
}

// SubmitApplication handles POST /v1/lenders/:id/applications
func (h *Handler) SubmitApplication(c *gin.Context) {
	var req ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be a JSON loan application",
		})
		return
	}

	app, err := h.service.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"application":  app,
		"debtToIncome": app.DebtToIncome(),
	})
}

// ListApplications handles GET /v1/lenders/:id/applications
func (h *Handler) ListApplications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	page, err := h.service.ListApplications(c.Request.Context(), c.Param("id"), Status(c.Query("status")), limit, c.Query("cursor"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// Portfolio handles GET /v1/lenders/:id/portfolio
func (h *Handler) Portfolio(c *gin.Context) {
	p, err := h.service.Portfolio(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolio": p})
}

// GetApplication handles GET /v1/applications/:id
func (h *Handler) GetApplication(c *gin.Context) {
	app, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"application": app})
}

// UpdateStatus handles PATCH /v1/applications/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "status is required",
		})
		return
	}

	app, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), Status(req.Status), validation.SanitizeString(req.Reason, validation.MaxStringLength))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"application": app})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verrs validation.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		validation.Respond(c, verrs)
	case errors.Is(err, score.ErrNonFiniteFactor):
		c.JSON(http.StatusBadRequest, gin.H{"error": "non_finite_factor", "message": err.Error()})
	case errors.Is(err, ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": err.Error()})
	case errors.Is(err, ErrInvalidCursor):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": err.Error()})
	case errors.Is(err, ErrApplicationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Application not found"})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "message": err.Error()})
	case errors.Is(err, ErrNoScore):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no_score", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Internal server error"})
	}
}
