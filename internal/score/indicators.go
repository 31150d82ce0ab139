package score

import (
	"fmt"
	"math"
)

// RiskLevel grades a single risk indicator.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Indicator explains how one factor is affecting the score.
type Indicator struct {
	Name        string    `json:"name"`
	Level       RiskLevel `json:"level"`
	Description string    `json:"description"`
}

// Indicators grades each factor of f. The input is clamped the same way
// Evaluate clamps it.
func Indicators(f Factors) []Indicator {
	payment := clampUnit(f.PaymentHistoryRatio)
	utilization := clampUnit(f.UtilizationRatio)
	years := math.Max(finite(f.HistoryLengthYears), 0)
	mix := clampUnit(f.CreditMixScore)
	inquiries := f.RecentInquiries
	if inquiries < 0 {
		inquiries = 0
	}

	return []Indicator{
		{
			Name:        "Late Payments",
			Level:       grade(payment < 0.9, payment < 0.98),
			Description: fmt.Sprintf("%.0f%% of payments made on time", payment*100),
		},
		{
			Name:        "High Credit Utilization",
			Level:       grade(utilization > 0.5, utilization > 0.3),
			Description: fmt.Sprintf("Using %.0f%% of available credit (recommended: under 30%%)", utilization*100),
		},
		{
			Name:        "Short Credit History",
			Level:       grade(years < 2, years < 5),
			Description: fmt.Sprintf("%.1f years of credit history", years),
		},
		{
			Name:        "Credit Mix",
			Level:       grade(mix < 0.4, mix < 0.7),
			Description: fmt.Sprintf("Credit mix diversity %.0f%%", mix*100),
		},
		{
			Name:        "Recent Hard Inquiries",
			Level:       grade(inquiries >= 4, inquiries >= 2),
			Description: fmt.Sprintf("%d inquiries in the trailing window", inquiries),
		},
	}
}

func grade(high, medium bool) RiskLevel {
	switch {
	case high:
		return RiskHigh
	case medium:
		return RiskMedium
	default:
		return RiskLow
	}
}
