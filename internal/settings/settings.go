// Package settings stores consumer profile preferences and lender decision
// policies. Lender settings double as the lending policy source.
package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/loticredit/loticredit/internal/score"
	"github.com/loticredit/loticredit/internal/validation"
)

var ErrNotFound = errors.New("settings not found")

const (
	DefaultMinCreditScore  = 650
	DefaultMaxDebtToIncome = 43.0
)

// ConsumerNotifications are a consumer's alert preferences.
type ConsumerNotifications struct {
	CreditUpdates   bool `json:"creditUpdates"`
	CreditInquiries bool `json:"creditInquiries"`
	Promotions      bool `json:"promotions"`
}

// ConsumerSettings is a consumer's profile and preferences.
type ConsumerSettings struct {
	ConsumerID    string                `json:"consumerId"`
	FirstName     string                `json:"firstName"`
	LastName      string                `json:"lastName"`
	Email         string                `json:"email"`
	Phone         string                `json:"phone"`
	Notifications ConsumerNotifications `json:"notifications"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// LenderNotifications are a lender's alert preferences.
type LenderNotifications struct {
	NewApplications    bool `json:"newApplications"`
	DelinquentPayments bool `json:"delinquentPayments"`
	SystemAlerts       bool `json:"systemAlerts"`
}

// LenderSettings is a lender's profile and automatic decision policy.
type LenderSettings struct {
	LenderID        string              `json:"lenderId"`
	InstitutionName string              `json:"institutionName"`
	ContactEmail    string              `json:"contactEmail"`
	MinCreditScore  int                 `json:"minCreditScore"`
	MaxDebtToIncome float64             `json:"maxDebtToIncome"` // percent
	AutoApprove     bool                `json:"autoApprove"`
	Notifications   LenderNotifications `json:"notifications"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// DefaultConsumerSettings returns the settings shown before a consumer saves any.
func DefaultConsumerSettings(consumerID string) *ConsumerSettings {
	return &ConsumerSettings{
		ConsumerID: consumerID,
		Notifications: ConsumerNotifications{
			CreditUpdates:   true,
			CreditInquiries: true,
		},
	}
}

// DefaultLenderSettings returns the settings used before a lender saves any.
func DefaultLenderSettings(lenderID string) *LenderSettings {
	return &LenderSettings{
		LenderID:        lenderID,
		MinCreditScore:  DefaultMinCreditScore,
		MaxDebtToIncome: DefaultMaxDebtToIncome,
		Notifications: LenderNotifications{
			NewApplications: true,
			SystemAlerts:    true,
		},
	}
}

func (s *ConsumerSettings) normalize() {
	s.FirstName = strings.TrimSpace(s.FirstName)
	s.LastName = strings.TrimSpace(s.LastName)
	s.Email = strings.TrimSpace(s.Email)
	s.Phone = strings.TrimSpace(s.Phone)
}

// Validate checks the consumer settings fields.
func (s *ConsumerSettings) Validate() validation.ValidationErrors {
	return validation.Validate(
		validation.Required("consumerId", s.ConsumerID),
		validation.ValidID("consumerId", s.ConsumerID),
		validation.MaxLength("firstName", s.FirstName, validation.MaxStringLength),
		validation.MaxLength("lastName", s.LastName, validation.MaxStringLength),
		validation.ValidEmail("email", s.Email),
		validation.ValidPhone("phone", s.Phone),
	)
}

func (s *LenderSettings) normalize() {
	s.InstitutionName = strings.TrimSpace(s.InstitutionName)
	s.ContactEmail = strings.TrimSpace(s.ContactEmail)
}

// Validate checks the lender settings fields. Zero policy values are
// filled with defaults before validation by the service.
func (s *LenderSettings) Validate() validation.ValidationErrors {
	errs := validation.Validate(
		validation.Required("lenderId", s.LenderID),
		validation.ValidID("lenderId", s.LenderID),
		validation.MaxLength("institutionName", s.InstitutionName, validation.MaxStringLength),
		validation.ValidEmail("contactEmail", s.ContactEmail),
		validation.InRange("minCreditScore", float64(s.MinCreditScore), score.MinScore, score.MaxScore),
		validation.Finite("maxDebtToIncome", s.MaxDebtToIncome),
	)
	if s.MaxDebtToIncome <= 0 || s.MaxDebtToIncome > 100 {
		errs = append(errs, validation.ValidationError{Field: "maxDebtToIncome", Message: "must be greater than 0 and at most 100"})
	}
	return errs
}

// Store persists settings documents.
type Store interface {
	GetConsumer(ctx context.Context, consumerID string) (*ConsumerSettings, error)
	PutConsumer(ctx context.Context, s *ConsumerSettings) error
	GetLender(ctx context.Context, lenderID string) (*LenderSettings, error)
	PutLender(ctx context.Context, s *LenderSettings) error
}
