package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loticredit/loticredit/internal/idgen"
	"github.com/loticredit/loticredit/internal/metrics"
	"github.com/loticredit/loticredit/internal/pagination"
	"github.com/loticredit/loticredit/internal/score"
	"github.com/loticredit/loticredit/internal/traces"
	"github.com/loticredit/loticredit/internal/validation"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	expireBatchSize = 500
)

// Service provides lending business logic.
type Service struct {
	store    Store
	engine   *score.Engine
	policies PolicyProvider
	scores   ScoreSource
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new lending service.
func NewService(store Store, engine *score.Engine, policies PolicyProvider, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		policies: policies,
		logger:   logger,
		now:      time.Now,
	}
}

// WithScoreSource lets applications without factors use the applicant's
// latest recorded score.
func (s *Service) WithScoreSource(src ScoreSource) *Service {
	s.scores = src
	return s
}

// WithEvents sets the publisher notified of every decision.
func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// CreateProduct publishes a loan product for a lender.
func (s *Service) CreateProduct(ctx context.Context, req ProductRequest) (*Product, error) {
	errs := validation.Validate(
		validation.Required("lenderId", req.LenderID),
		validation.ValidID("lenderId", req.LenderID),
		validation.OneOf("loanType", req.LoanType, LoanTypes...),
		validation.InRange("interestRate", req.InterestRate, 0, 100),
		validation.InRange("termMonths", float64(req.TermMonths), 1, 480),
	)
	if len(errs) > 0 {
		return nil, errs
	}

	p := &Product{
		ID:           idgen.WithPrefix("prod_"),
		LenderID:     req.LenderID,
		LoanType:     LoanType(req.LoanType),
		InterestRate: req.InterestRate,
		TermMonths:   req.TermMonths,
		CreatedAt:    s.timestamp(),
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return p, nil
}

// ListProducts returns a lender's products, newest first.
func (s *Service) ListProducts(ctx context.Context, lenderID string) ([]*Product, error) {
	products, err := s.store.ListProducts(ctx, lenderID)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []*Product{}
	}
	return products, nil
}

// Submit scores an applicant, applies the lender's policy and stores the
// resulting application.
func (s *Service) Submit(ctx context.Context, lenderID string, req ApplicationRequest) (*Application, error) {
	ctx, span := traces.StartSpan(ctx, "lending.Submit", traces.LenderID(lenderID))
	defer span.End()

	req.ApplicantName = strings.TrimSpace(req.ApplicantName)
	errs := validation.Validate(
		validation.ValidID("lenderId", lenderID),
		validation.Required("applicantName", req.ApplicantName),
		validation.MaxLength("applicantName", req.ApplicantName, validation.MaxStringLength),
		validation.ValidID("applicantId", req.ApplicantID),
		validation.OneOf("loanType", req.LoanType, LoanTypes...),
		validation.Positive("amount", req.Amount),
		validation.Positive("monthlyIncome", req.MonthlyIncome),
		validation.InRange("monthlyDebt", req.MonthlyDebt, 0, 1e12),
	)
	if len(errs) > 0 {
		return nil, errs
	}

	result, err := s.applicantScore(ctx, req)
	if err != nil {
		traces.RecordError(span, err)
		return nil, err
	}

	policy, err := s.policies.Policy(ctx, lenderID)
	if err != nil {
		traces.RecordError(span, err)
		return nil, fmt.Errorf("failed to load lender policy: %w", err)
	}

	dti := DebtToIncome(req.MonthlyDebt, req.MonthlyIncome)
	decision := Decide(policy, result.Score, dti)

	now := s.timestamp()
	app := &Application{
		ID:            idgen.WithPrefix("app_"),
		LenderID:      lenderID,
		ApplicantName: req.ApplicantName,
		ApplicantID:   req.ApplicantID,
		LoanType:      LoanType(req.LoanType),
		Amount:        req.Amount,
		MonthlyIncome: req.MonthlyIncome,
		MonthlyDebt:   req.MonthlyDebt,
		Score:         result.Score,
		Rating:        result.Rating,
		Factors:       copyFactors(req.Factors),
		Status:        decision.Status,
		Reason:        decision.Reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateApplication(ctx, app); err != nil {
		traces.RecordError(span, err)
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	span.SetAttributes(traces.ApplicationID(app.ID), traces.Score(app.Score), traces.Status(string(app.Status)))

	metrics.LoanDecisionsTotal.WithLabelValues(string(app.Status)).Inc()
	s.publish(app)
	s.logger.Info("loan application decided",
		"application", app.ID,
		"lender", lenderID,
		"score", app.Score,
		"dti", dti,
		"status", app.Status,
	)
	return app, nil
}

func copyFactors(f *score.Factors) *score.Factors {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

func (s *Service) applicantScore(ctx context.Context, req ApplicationRequest) (score.Result, error) {
	if req.Factors != nil {
		if err := req.Factors.Validate(); err != nil {
			metrics.RejectedFactorsTotal.Inc()
			return score.Result{}, err
		}
		res := s.engine.Evaluate(*req.Factors)
		metrics.ObserveEvaluation("application", string(res.Rating), res.Score)
		return res, nil
	}
	if s.scores == nil || req.ApplicantID == "" {
		return score.Result{}, ErrNoScore
	}
	res, err := s.scores.LatestResult(ctx, req.ApplicantID)
	if err != nil {
		return score.Result{}, fmt.Errorf("%w: %v", ErrNoScore, err)
	}
	return res, nil
}

// Get returns an application by ID.
func (s *Service) Get(ctx context.Context, id string) (*Application, error) {
	return s.store.GetApplication(ctx, id)
}

// ApplicationPage is one page of a lender's applications.
type ApplicationPage struct {
	Applications []*Application `json:"applications"`
	NextCursor   string         `json:"nextCursor,omitempty"`
	HasMore      bool           `json:"hasMore"`
}

// ListApplications returns a lender's applications newest first, optionally
// filtered by status.
func (s *Service) ListApplications(ctx context.Context, lenderID string, status Status, limit int, cursor string) (*ApplicationPage, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	after, err := pagination.Decode(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	items, err := s.store.ListApplications(ctx, lenderID, status, limit+1, after)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	items, next, more := pagination.ComputePage(items, limit, func(a *Application) (time.Time, string) {
		return a.CreatedAt, a.ID
	})
	if items == nil {
		items = []*Application{}
	}
	return &ApplicationPage{Applications: items, NextCursor: next, HasMore: more}, nil
}

// SetStatus applies a manual lender decision.
func (s *Service) SetStatus(ctx context.Context, id string, to Status, reason string) (*Application, error) {
	ctx, span := traces.StartSpan(ctx, "lending.SetStatus", traces.ApplicationID(id), traces.Status(string(to)))
	defer span.End()

	if !to.Valid() || to == StatusPending || to == StatusExpired {
		return nil, ErrInvalidStatus
	}

	current, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, to)
	}
	if reason == "" {
		reason = "manual decision"
	}

	app, err := s.store.UpdateStatus(ctx, id, current.Status, to, reason, s.timestamp())
	if err != nil {
		traces.RecordError(span, err)
		return nil, err
	}

	metrics.LoanDecisionsTotal.WithLabelValues(string(app.Status)).Inc()
	s.publish(app)
	s.logger.Info("loan application updated", "application", id, "from", current.Status, "to", to)
	return app, nil
}

// ExpireStale moves pending applications older than maxAge to expired and
// returns how many were expired.
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-maxAge)

	stale, err := s.store.ListPendingBefore(ctx, cutoff, expireBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale applications: %w", err)
	}

	expired := 0
	for _, a := range stale {
		app, err := s.store.UpdateStatus(ctx, a.ID, StatusPending, StatusExpired, "no decision before expiry", s.timestamp())
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				continue // decided concurrently
			}
			s.logger.Warn("failed to expire application", "application", a.ID, "error", err)
			continue
		}
		expired++
		s.publish(app)
	}
	if expired > 0 {
		metrics.ApplicationsExpiredTotal.Add(float64(expired))
	}
	return expired, nil
}

func (s *Service) publish(app *Application) {
	if s.events != nil {
		s.events.PublishLoanDecision(app.LenderID, app.ApplicantID, app)
	}
}
