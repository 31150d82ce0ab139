package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(cfg)
	l.now = clock.now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestLimiterAllow(t *testing.T) {
	limiter, clock := newTestLimiter(t, Config{RequestsPerMinute: 60, BurstSize: 5, CleanupInterval: time.Minute})

	for i := 0; i < 5; i++ {
		if !limiter.Allow("ip") {
			t.Errorf("Request %d should be allowed (within burst)", i)
		}
	}
	if limiter.Allow("ip") {
		t.Error("Request after burst should be denied")
	}

	// 60/min refills one token per second
	clock.advance(time.Second)
	if !limiter.Allow("ip") {
		t.Error("Request after refill should be allowed")
	}
}

func TestLimiterMultipleClients(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{RequestsPerMinute: 60, BurstSize: 3, CleanupInterval: time.Minute})

	for i := 0; i < 3; i++ {
		limiter.Allow("client-a")
	}
	if limiter.Allow("client-a") {
		t.Error("Client A should be rate limited")
	}
	if !limiter.Allow("client-b") {
		t.Error("Client B should not be rate limited")
	}
}

func TestLimiterRefillCappedAtBurst(t *testing.T) {
	limiter, clock := newTestLimiter(t, Config{RequestsPerMinute: 600, BurstSize: 2, CleanupInterval: time.Minute})

	limiter.Allow("k")
	clock.advance(time.Hour)

	allowed := 0
	for i := 0; i < 10; i++ {
		if limiter.Allow("k") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("Expected burst of 2 after long idle, got %d", allowed)
	}
}

func TestLimiterSweepDropsIdleBuckets(t *testing.T) {
	limiter, clock := newTestLimiter(t, Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute, IdleTTL: time.Minute})

	limiter.Allow("idle")
	clock.advance(2 * time.Minute)
	limiter.Allow("fresh")
	limiter.sweep()

	limiter.mu.Lock()
	_, idle := limiter.clients["idle"]
	_, fresh := limiter.clients["fresh"]
	limiter.mu.Unlock()
	if idle {
		t.Error("idle bucket should be swept")
	}
	if !fresh {
		t.Error("fresh bucket should survive the sweep")
	}
}

func TestLimiterStopIsIdempotent(t *testing.T) {
	l := New(DefaultConfig())
	l.Stop()
	l.Stop()
}

func TestFromRPM(t *testing.T) {
	tests := []struct {
		rpm       int
		wantRate  int
		wantBurst int
	}{
		{rpm: 120, wantRate: 120, wantBurst: 20},
		{rpm: 12, wantRate: 12, wantBurst: 5},
		{rpm: 0, wantRate: 60, wantBurst: 10},
	}
	for _, tt := range tests {
		cfg := FromRPM(tt.rpm)
		if cfg.RequestsPerMinute != tt.wantRate || cfg.BurstSize != tt.wantBurst {
			t.Errorf("FromRPM(%d) = %d/%d, want %d/%d", tt.rpm, cfg.RequestsPerMinute, cfg.BurstSize, tt.wantRate, tt.wantBurst)
		}
	}
}

func TestMiddleware_429WithRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter, _ := newTestLimiter(t, Config{RequestsPerMinute: 30, BurstSize: 1, CleanupInterval: time.Minute})

	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Expected Retry-After 2, got %q", got)
	}
}

func TestMiddlewareWithKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter, _ := newTestLimiter(t, Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute})

	r := gin.New()
	r.Use(limiter.MiddlewareWithKey(func(c *gin.Context) string { return c.GetHeader("X-Lender") }))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, lender := range []string{"a", "b"} {
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set("X-Lender", lender)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Errorf("lender %s: expected 204, got %d", lender, w.Code)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RequestsPerMinute != 60 || cfg.BurstSize != 10 || cfg.CleanupInterval != time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
