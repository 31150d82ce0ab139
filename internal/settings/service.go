package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loticredit/loticredit/internal/cache"
	"github.com/loticredit/loticredit/internal/lending"
	"github.com/loticredit/loticredit/internal/metrics"
)

// Compile-time check that Service can drive lending decisions.
var _ lending.PolicyProvider = (*Service)(nil)

// Service provides settings business logic.
type Service struct {
	store    Store
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new settings service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithCache caches lender policies, which are read on every application.
func (s *Service) WithCache(c cache.Cache, ttl time.Duration) *Service {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

// Consumer returns a consumer's settings, or defaults if none were saved.
func (s *Service) Consumer(ctx context.Context, consumerID string) (*ConsumerSettings, error) {
	cs, err := s.store.GetConsumer(ctx, consumerID)
	if errors.Is(err, ErrNotFound) {
		return DefaultConsumerSettings(consumerID), nil
	}
	return cs, err
}

// SaveConsumer validates and stores a consumer's settings.
func (s *Service) SaveConsumer(ctx context.Context, cs *ConsumerSettings) (*ConsumerSettings, error) {
	cs.normalize()
	if errs := cs.Validate(); len(errs) > 0 {
		return nil, errs
	}
	cs.UpdatedAt = s.now().UTC()

	if err := s.store.PutConsumer(ctx, cs); err != nil {
		return nil, fmt.Errorf("failed to save consumer settings: %w", err)
	}
	metrics.SettingsSavedTotal.WithLabelValues("consumer").Inc()
	s.logger.Info("consumer settings saved", "consumer", cs.ConsumerID)
	return cs, nil
}

// Lender returns a lender's settings, or defaults if none were saved.
func (s *Service) Lender(ctx context.Context, lenderID string) (*LenderSettings, error) {
	ls, err := s.store.GetLender(ctx, lenderID)
	if errors.Is(err, ErrNotFound) {
		return DefaultLenderSettings(lenderID), nil
	}
	return ls, err
}

// SaveLender validates and stores a lender's settings. Omitted policy
// thresholds take their defaults.
func (s *Service) SaveLender(ctx context.Context, ls *LenderSettings) (*LenderSettings, error) {
	ls.normalize()
	if ls.MinCreditScore == 0 {
		ls.MinCreditScore = DefaultMinCreditScore
	}
	if ls.MaxDebtToIncome == 0 {
		ls.MaxDebtToIncome = DefaultMaxDebtToIncome
	}
	if errs := ls.Validate(); len(errs) > 0 {
		return nil, errs
	}
	ls.UpdatedAt = s.now().UTC()

	if err := s.store.PutLender(ctx, ls); err != nil {
		return nil, fmt.Errorf("failed to save lender settings: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, policyKey(ls.LenderID)); err != nil {
			s.logger.Warn("policy cache invalidation failed", "lender", ls.LenderID, "error", err)
		}
	}
	metrics.SettingsSavedTotal.WithLabelValues("lender").Inc()
	s.logger.Info("lender settings saved",
		"lender", ls.LenderID,
		"minCreditScore", ls.MinCreditScore,
		"maxDebtToIncome", ls.MaxDebtToIncome,
		"autoApprove", ls.AutoApprove,
	)
	return ls, nil
}

// Policy returns the lender's decision policy, falling back to defaults
// for lenders without saved settings.
func (s *Service) Policy(ctx context.Context, lenderID string) (lending.Policy, error) {
	if p, ok := s.cachedPolicy(ctx, lenderID); ok {
		return p, nil
	}

	ls, err := s.Lender(ctx, lenderID)
	if err != nil {
		return lending.Policy{}, err
	}
	p := lending.Policy{
		MinCreditScore:  ls.MinCreditScore,
		MaxDebtToIncome: ls.MaxDebtToIncome,
		AutoApprove:     ls.AutoApprove,
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if raw, err := json.Marshal(p); err == nil {
			_ = s.cache.Set(ctx, policyKey(lenderID), string(raw), s.cacheTTL)
		}
	}
	return p, nil
}

func policyKey(lenderID string) string {
	return "policy:" + lenderID
}

func (s *Service) cachedPolicy(ctx context.Context, lenderID string) (lending.Policy, bool) {
	if s.cache == nil {
		return lending.Policy{}, false
	}
	raw, err := s.cache.Get(ctx, policyKey(lenderID))
	if err != nil {
		return lending.Policy{}, false
	}
	var p lending.Policy
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return lending.Policy{}, false
	}
	return p, true
}
