package lending

import "fmt"

// Policy is the subset of lender settings that drives automatic decisions.
type Policy struct {
	MinCreditScore  int     `json:"minCreditScore"`
	MaxDebtToIncome float64 `json:"maxDebtToIncome"` // percent
	AutoApprove     bool    `json:"autoApprove"`
}

// DefaultPolicy applies to lenders that have not saved settings.
func DefaultPolicy() Policy {
	return Policy{MinCreditScore: 650, MaxDebtToIncome: 43, AutoApprove: false}
}

// Decision is the outcome of checking an application against a policy.
type Decision struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`
}

// Decide checks a score and debt-to-income ratio against the policy.
// The score check runs first, so a low score is rejected even when the
// ratio would also send the application to review.
func Decide(p Policy, score int, dti float64) Decision {
	if score < p.MinCreditScore {
		return Decision{
			Status: StatusRejected,
			Reason: fmt.Sprintf("credit score %d is below the minimum of %d", score, p.MinCreditScore),
		}
	}
	if dti > p.MaxDebtToIncome {
		return Decision{
			Status: StatusUnderReview,
			Reason: fmt.Sprintf("debt-to-income %.1f%% exceeds the maximum of %.1f%%", dti, p.MaxDebtToIncome),
		}
	}
	if p.AutoApprove {
		return Decision{Status: StatusApproved, Reason: "meets lender policy"}
	}
	return Decision{Status: StatusPending, Reason: "awaiting lender review"}
}

// DebtToIncome returns debt over income in percent. Zero or negative income
// yields 100 when there is any debt and 0 otherwise.
func DebtToIncome(monthlyDebt, monthlyIncome float64) float64 {
	if monthlyDebt < 0 {
		monthlyDebt = 0
	}
	if monthlyIncome <= 0 {
		if monthlyDebt > 0 {
			return 100
		}
		return 0
	}
	return monthlyDebt / monthlyIncome * 100
}
