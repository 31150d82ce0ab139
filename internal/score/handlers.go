package score

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loticredit/loticredit/internal/logging"
	"github.com/loticredit/loticredit/internal/metrics"
)

// EvaluateRequest is the request body for a stateless evaluation. Payments
// and Accounts, when present, replace the payment and utilization ratios
// with values derived from the raw tallies.
type EvaluateRequest struct {
	Factors
	Payments *PaymentCounts `json:"payments,omitempty"`
	Accounts []Account      `json:"accounts,omitempty"`
}

// Resolve returns the factors to evaluate.
func (r EvaluateRequest) Resolve() Factors {
	f := r.Factors
	if r.Payments != nil {
		f.PaymentHistoryRatio = PaymentRatio(*r.Payments)
	}
	if len(r.Accounts) > 0 {
		f.UtilizationRatio = Utilization(r.Accounts)
	}
	return f
}

// EvaluateResponse is returned by POST /v1/score/evaluate.
type EvaluateResponse struct {
	Result     Result      `json:"result"`
	Label      string      `json:"label"`
	Factors    Factors     `json:"factors"`
	Breakdown  Breakdown   `json:"breakdown"`
	Indicators []Indicator `json:"indicators"`
}

// Handler provides HTTP endpoints for stateless scoring.
type Handler struct {
	engine *Engine
}

// NewHandler creates a new score handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes sets up the score routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/score/evaluate", h.Evaluate)
	r.GET("/score/bands", h.ListBands)
}

// Evaluate handles POST /v1/score/evaluate
func (h *Handler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be a JSON factor set",
		})
		return
	}

	f := req.Resolve()
	if err := f.Validate(); err != nil {
		metrics.RejectedFactorsTotal.Inc()
		code := "invalid_factors"
		if errors.Is(err, ErrNonFiniteFactor) {
			code = "non_finite_factor"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": code, "message": err.Error()})
		return
	}

	b := h.engine.Breakdown(f)
	metrics.ObserveEvaluation("api", string(b.Rating), b.Score)
	logging.L(c.Request.Context()).Debug("score evaluated",
		"score", b.Score,
		"rating", b.Rating,
	)

	c.JSON(http.StatusOK, EvaluateResponse{
		Result:     b.Result(),
		Label:      b.Rating.Label(),
		Factors:    f,
		Breakdown:  b,
		Indicators: Indicators(f),
	})
}

// ListBands handles GET /v1/score/bands
func (h *Handler) ListBands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"bands":          Bands(),
		"inquiryCeiling": h.engine.InquiryCeiling(),
		"weights": gin.H{
			"paymentHistory": WeightPaymentHistory,
			"utilization":    WeightUtilization,
			"historyLength":  WeightHistoryLength,
			"creditMix":      WeightCreditMix,
			"inquiries":      WeightInquiries,
		},
	})
}
