// Package lending implements loan products and applications for lenders.
//
// Applicants are scored with the credit engine and checked against the
// lender's policy (minimum score, maximum debt-to-income, auto-approve).
// Undecided applications expire after a configurable age.
package lending

import (
	"context"
	"errors"
	"time"

	"github.com/loticredit/loticredit/internal/pagination"
	"github.com/loticredit/loticredit/internal/score"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrInvalidStatus       = errors.New("invalid application status")
	ErrNoScore             = errors.New("no credit score available for applicant")
	ErrInvalidCursor       = errors.New("invalid cursor")
)

// LoanType is the kind of loan a product offers.
type LoanType string

const (
	LoanPersonal LoanType = "personal"
	LoanMortgage LoanType = "mortgage"
	LoanAuto     LoanType = "auto"
	LoanBusiness LoanType = "business"
)

// LoanTypes lists the supported loan types.
var LoanTypes = []string{string(LoanPersonal), string(LoanMortgage), string(LoanAuto), string(LoanBusiness)}

// Status is the state of an application.
type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusExpired     Status = "expired"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusRejected, StatusExpired:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:     {StatusUnderReview, StatusApproved, StatusRejected, StatusExpired},
	StatusUnderReview: {StatusApproved, StatusRejected},
}

// CanTransition reports whether an application may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Product is a loan offering published by a lender.
type Product struct {
	ID           string    `json:"id"`
	LenderID     string    `json:"lenderId"`
	LoanType     LoanType  `json:"loanType"`
	InterestRate float64   `json:"interestRate"`
	TermMonths   int       `json:"termMonths"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Application is a borrower's request for a loan from a lender.
type Application struct {
	ID            string         `json:"id"`
	LenderID      string         `json:"lenderId"`
	ApplicantName string         `json:"applicantName"`
	ApplicantID   string         `json:"applicantId,omitempty"`
	LoanType      LoanType       `json:"loanType"`
	Amount        float64        `json:"amount"`
	MonthlyIncome float64        `json:"monthlyIncome"`
	MonthlyDebt   float64        `json:"monthlyDebt"`
	Score         int            `json:"score"`
	Rating        score.Rating   `json:"rating"`
	// Factors are the inputs the score came from. Nil when the applicant's
	// recorded score was used.
	Factors   *score.Factors `json:"factors,omitempty"`
	Status    Status         `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// DebtToIncome is monthly debt over monthly income, in percent.
func (a *Application) DebtToIncome() float64 {
	return DebtToIncome(a.MonthlyDebt, a.MonthlyIncome)
}

// ProductRequest is the request body for publishing a loan product.
type ProductRequest struct {
	LenderID     string  `json:"lenderId"`
	LoanType     string  `json:"loanType"`
	InterestRate float64 `json:"interestRate"`
	TermMonths   int     `json:"termMonths"`
}

// ApplicationRequest is the request body for submitting an application.
// When Factors is absent the applicant's latest recorded score is used.
type ApplicationRequest struct {
	ApplicantName string         `json:"applicantName"`
	ApplicantID   string         `json:"applicantId"`
	LoanType      string         `json:"loanType"`
	Amount        float64        `json:"amount"`
	MonthlyIncome float64        `json:"monthlyIncome"`
	MonthlyDebt   float64        `json:"monthlyDebt"`
	Factors       *score.Factors `json:"factors,omitempty"`
}

// StatusRequest is the request body for a manual status change.
type StatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Store persists products and applications.
type Store interface {
	CreateProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context, lenderID string) ([]*Product, error)

	CreateApplication(ctx context.Context, a *Application) error
	GetApplication(ctx context.Context, id string) (*Application, error)
	// UpdateStatus moves an application from one status to another only if
	// it is still in the from status. Otherwise it returns ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, from, to Status, reason string, at time.Time) (*Application, error)
	// ListApplications returns a lender's applications newest first. An empty
	// status matches all statuses.
	ListApplications(ctx context.Context, lenderID string, status Status, limit int, after *pagination.Cursor) ([]*Application, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Application, error)
}

// PolicyProvider resolves a lender's decision policy (satisfied by settings.Service).
type PolicyProvider interface {
	Policy(ctx context.Context, lenderID string) (Policy, error)
}

// ScoreSource returns the latest recorded score for a consumer
// (satisfied by history.Service).
type ScoreSource interface {
	LatestResult(ctx context.Context, consumerID string) (score.Result, error)
}

// EventPublisher announces decisions (satisfied by realtime.Hub).
type EventPublisher interface {
	PublishLoanDecision(lenderID, consumerID string, data any)
}
