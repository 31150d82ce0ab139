package score

import "math"

// Factor weights. They sum to 1.0.
const (
	WeightPaymentHistory = 0.35
	WeightUtilization    = 0.30
	WeightHistoryLength  = 0.15
	WeightCreditMix      = 0.10
	WeightInquiries      = 0.10
)

const (
	// DefaultInquiryCeiling is the inquiry count at which the inquiry
	// component reaches zero.
	DefaultInquiryCeiling = 5

	// historySaturationYears is the history length that earns the full
	// history component.
	historySaturationYears = 10.0
)

// Config tunes an Engine.
type Config struct {
	InquiryCeiling int
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{InquiryCeiling: DefaultInquiryCeiling}
}

// Engine evaluates Factors into a Result.
type Engine struct {
	inquiryCeiling float64
}

// NewEngine creates an engine. A non-positive inquiry ceiling falls back
// to DefaultInquiryCeiling.
func NewEngine(cfg Config) *Engine {
	ceiling := cfg.InquiryCeiling
	if ceiling <= 0 {
		ceiling = DefaultInquiryCeiling
	}
	return &Engine{inquiryCeiling: float64(ceiling)}
}

// InquiryCeiling returns the configured ceiling.
func (e *Engine) InquiryCeiling() int {
	return int(e.inquiryCeiling)
}

// Breakdown is a full evaluation: the weighted component points (each on a
// 0-100 scale already multiplied by its weight), their total, and the
// resulting score and rating.
type Breakdown struct {
	Payment     float64 `json:"payment"`
	Utilization float64 `json:"utilization"`
	History     float64 `json:"history"`
	Mix         float64 `json:"mix"`
	Inquiry     float64 `json:"inquiry"`
	RawTotal    float64 `json:"rawTotal"`
	Score       int     `json:"score"`
	Rating      Rating  `json:"rating"`
}

// Result projects the breakdown onto its score and rating.
func (b Breakdown) Result() Result {
	return Result{Score: b.Score, Rating: b.Rating}
}

// Evaluate scores f. It never fails: every factor is clamped into its
// domain first, and a NaN factor counts as zero.
func (e *Engine) Evaluate(f Factors) Result {
	return e.Breakdown(f).Result()
}

// Breakdown scores f and returns every intermediate component.
func (e *Engine) Breakdown(f Factors) Breakdown {
	payment := clampUnit(f.PaymentHistoryRatio)
	utilization := clampUnit(f.UtilizationRatio)
	years := math.Max(finite(f.HistoryLengthYears), 0)
	mix := clampUnit(f.CreditMixScore)
	inquiries := math.Max(float64(f.RecentInquiries), 0)

	b := Breakdown{
		Payment:     payment * 100 * WeightPaymentHistory,
		Utilization: (1 - utilization) * 100 * WeightUtilization,
		History:     math.Min(years/historySaturationYears, 1) * 100 * WeightHistoryLength,
		Mix:         mix * 100 * WeightCreditMix,
		Inquiry:     math.Max(0, 1-inquiries/e.inquiryCeiling) * 100 * WeightInquiries,
	}
	b.RawTotal = b.Payment + b.Utilization + b.History + b.Mix + b.Inquiry

	s := int(math.Round(MinScore + (b.RawTotal/100)*(MaxScore-MinScore)))
	b.Score = clampInt(s, MinScore, MaxScore)
	b.Rating = RatingFor(b.Score)
	return b
}

// finite maps NaN to zero and leaves every other value alone; infinities
// are handled by the clamps that follow.
func finite(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func clampUnit(v float64) float64 {
	return math.Min(math.Max(finite(v), 0), 1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
