package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loticredit/loticredit/internal/cache"
	"github.com/loticredit/loticredit/internal/idgen"
	"github.com/loticredit/loticredit/internal/metrics"
	"github.com/loticredit/loticredit/internal/pagination"
	"github.com/loticredit/loticredit/internal/score"
	"github.com/loticredit/loticredit/internal/traces"
	"github.com/loticredit/loticredit/internal/validation"
)

// EventPublisher announces newly recorded scores (satisfied by realtime.Hub).
type EventPublisher interface {
	PublishScoreUpdated(consumerID string, data any)
}

// Service provides score history business logic.
type Service struct {
	store    Store
	engine   *score.Engine
	cache    cache.Cache
	cacheTTL time.Duration
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new history service.
func NewService(store Store, engine *score.Engine, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		engine: engine,
		logger: logger,
		now:    time.Now,
	}
}

// WithCache enables read-through caching of each consumer's latest snapshot.
func (s *Service) WithCache(c cache.Cache, ttl time.Duration) *Service {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

// WithEvents sets the publisher notified after each recorded score.
func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

// Record evaluates factors for a consumer and stores the result.
func (s *Service) Record(ctx context.Context, consumerID string, f score.Factors) (*Snapshot, error) {
	ctx, span := traces.StartSpan(ctx, "history.Record", traces.ConsumerID(consumerID))
	defer span.End()

	if !validation.IsValidID(consumerID) {
		return nil, ErrInvalidConsumer
	}
	if err := f.Validate(); err != nil {
		metrics.RejectedFactorsTotal.Inc()
		return nil, err
	}

	res := s.engine.Evaluate(f)
	snap := &Snapshot{
		ID:         idgen.WithPrefix("snap_"),
		ConsumerID: consumerID,
		Factors:    f,
		Score:      res.Score,
		Rating:     res.Rating,
		// Postgres keeps microseconds; truncate so cursors round-trip.
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	if err := s.store.Create(ctx, snap); err != nil {
		traces.RecordError(span, err)
		return nil, fmt.Errorf("failed to record score: %w", err)
	}
	span.SetAttributes(traces.Score(snap.Score), traces.Rating(string(snap.Rating)))
	metrics.ObserveEvaluation("record", string(snap.Rating), snap.Score)

	s.cacheLatest(ctx, snap)
	if s.events != nil {
		s.events.PublishScoreUpdated(consumerID, snap)
	}

	s.logger.Info("score recorded",
		"consumer", consumerID,
		"score", snap.Score,
		"rating", snap.Rating,
	)
	return snap, nil
}

// Latest returns the most recent snapshot for a consumer.
func (s *Service) Latest(ctx context.Context, consumerID string) (*Snapshot, error) {
	if snap, ok := s.cachedLatest(ctx, consumerID); ok {
		return snap, nil
	}

	snap, err := s.store.Latest(ctx, consumerID)
	if err != nil {
		return nil, err
	}
	s.cacheLatest(ctx, snap)
	return snap, nil
}

// LatestResult returns the score and rating of the latest snapshot.
func (s *Service) LatestResult(ctx context.Context, consumerID string) (score.Result, error) {
	snap, err := s.Latest(ctx, consumerID)
	if err != nil {
		return score.Result{}, err
	}
	return score.Result{Score: snap.Score, Rating: snap.Rating}, nil
}

// History returns one page of snapshots, newest first.
func (s *Service) History(ctx context.Context, consumerID string, limit int, cursor string) (*Page, error) {
	limit = clampLimit(limit, DefaultPageSize, MaxPageSize)

	after, err := pagination.Decode(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	items, err := s.store.List(ctx, consumerID, limit+1, after)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	items, next, more := pagination.ComputePage(items, limit, func(snap *Snapshot) (time.Time, string) {
		return snap.CreatedAt, snap.ID
	})
	if items == nil {
		items = []*Snapshot{}
	}
	return &Page{Snapshots: items, NextCursor: next, HasMore: more}, nil
}

// Trend returns the last n scores oldest first and the change across them.
func (s *Service) Trend(ctx context.Context, consumerID string, n int) (*Trend, error) {
	n = clampLimit(n, DefaultTrendSize, MaxTrendSize)

	items, err := s.store.List(ctx, consumerID, n, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load trend: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrSnapshotNotFound
	}

	points := make([]TrendPoint, len(items))
	for i, snap := range items {
		points[len(items)-1-i] = TrendPoint{Score: snap.Score, Rating: snap.Rating, At: snap.CreatedAt}
	}
	return &Trend{
		ConsumerID: consumerID,
		Points:     points,
		Delta:      points[len(points)-1].Score - points[0].Score,
	}, nil
}

func latestKey(consumerID string) string {
	return "score:latest:" + consumerID
}

func (s *Service) cachedLatest(ctx context.Context, consumerID string) (*Snapshot, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, latestKey(consumerID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("score cache read failed", "consumer", consumerID, "error", err)
		}
		return nil, false
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		_ = s.cache.Delete(ctx, latestKey(consumerID))
		return nil, false
	}
	return &snap, true
}

func (s *Service) cacheLatest(ctx context.Context, snap *Snapshot) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, latestKey(snap.ConsumerID), string(raw), s.cacheTTL); err != nil {
		s.logger.Warn("score cache write failed", "consumer", snap.ConsumerID, "error", err)
	}
}

func clampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
