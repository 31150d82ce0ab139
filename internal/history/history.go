// Package history records evaluated credit scores per consumer and serves
// the latest score, paginated history and trend data.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/loticredit/loticredit/internal/pagination"
	"github.com/loticredit/loticredit/internal/score"
)

var (
	ErrSnapshotNotFound = errors.New("no score recorded for consumer")
	ErrInvalidConsumer  = errors.New("invalid consumer id")
	ErrInvalidCursor    = errors.New("invalid cursor")
)

const (
	DefaultPageSize  = 20
	MaxPageSize      = 100
	DefaultTrendSize = 12
	MaxTrendSize     = 60
)

// Snapshot is one recorded evaluation for a consumer.
type Snapshot struct {
	ID         string        `json:"id"`
	ConsumerID string        `json:"consumerId"`
	Factors    score.Factors `json:"factors"`
	Score      int           `json:"score"`
	Rating     score.Rating  `json:"rating"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Page is a slice of history, newest first.
type Page struct {
	Snapshots  []*Snapshot `json:"snapshots"`
	NextCursor string      `json:"nextCursor,omitempty"`
	HasMore    bool        `json:"hasMore"`
}

// TrendPoint is a single point on the score chart.
type TrendPoint struct {
	Score  int          `json:"score"`
	Rating score.Rating `json:"rating"`
	At     time.Time    `json:"at"`
}

// Trend is the recent score series, oldest first. Delta is last minus first.
type Trend struct {
	ConsumerID string       `json:"consumerId"`
	Points     []TrendPoint `json:"points"`
	Delta      int          `json:"delta"`
}

// Store persists snapshots.
type Store interface {
	Create(ctx context.Context, snap *Snapshot) error
	Latest(ctx context.Context, consumerID string) (*Snapshot, error)
	// List returns up to limit snapshots newest first, starting strictly
	// after the cursor position when one is given.
	List(ctx context.Context, consumerID string, limit int, after *pagination.Cursor) ([]*Snapshot, error)
}

// before reports whether a sorts after b in newest-first order.
func before(aAt time.Time, aID string, bAt time.Time, bID string) bool {
	if !aAt.Equal(bAt) {
		return aAt.Before(bAt)
	}
	return aID < bID
}
