package lending

import (
	"context"
	"log/slog"
	"time"
)

// Timer periodically expires pending applications that were never decided.
type Timer struct {
	service  *Service
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewTimer creates a new expiry timer. Applications pending longer than
// maxAge are expired on each hourly tick.
func NewTimer(service *Service, maxAge time.Duration, logger *slog.Logger) *Timer {
	return &Timer{
		service:  service,
		maxAge:   maxAge,
		interval: 1 * time.Hour,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the expiry loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.expire(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) expire(ctx context.Context) {
	count, err := t.service.ExpireStale(ctx, t.maxAge)
	if err != nil {
		t.logger.Warn("failed to expire stale applications", "error", err)
		return
	}
	if count > 0 {
		t.logger.Info("stale applications expired", "count", count)
	}
}
