// Package metrics provides Prometheus instrumentation for the LotiCredit platform.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loticredit",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loticredit",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ScoreEvaluationsTotal counts score evaluations by rating and caller.
	ScoreEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loticredit",
			Name:      "score_evaluations_total",
			Help:      "Total credit score evaluations by rating band and source.",
		},
		[]string{"rating", "source"},
	)

	// ScoreValue observes the distribution of computed scores.
	ScoreValue = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "loticredit",
		Name:      "score_value",
		Help:      "Distribution of computed credit scores.",
		Buckets:   []float64{350, 400, 450, 500, 550, 580, 620, 670, 700, 740, 770, 800, 850},
	})

	// RejectedFactorsTotal counts evaluations refused for non-finite input.
	RejectedFactorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "loticredit",
		Name:      "score_rejected_factors_total",
		Help:      "Evaluation requests rejected because a factor was NaN or infinite.",
	})

	// LoanDecisionsTotal counts loan application decisions by resulting status.
	LoanDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loticredit",
			Name:      "loan_decisions_total",
			Help:      "Total loan application decisions by status.",
		},
		[]string{"status"},
	)

	// ApplicationsExpiredTotal counts pending applications moved to expired.
	ApplicationsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "loticredit",
		Name:      "applications_expired_total",
		Help:      "Total pending loan applications expired by the sweeper.",
	})

	// SettingsSavedTotal counts settings saves by account kind.
	SettingsSavedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loticredit",
			Name:      "settings_saved_total",
			Help:      "Total settings documents saved by account kind.",
		},
		[]string{"kind"},
	)

	// CacheRequestsTotal counts cache lookups by backend and result.
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loticredit",
			Name:      "cache_requests_total",
			Help:      "Cache lookups by backend and result (hit, miss, error).",
		},
		[]string{"backend", "result"},
	)

	// RateLimitedTotal counts requests refused by the rate limiter.
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "loticredit",
		Name:      "rate_limited_total",
		Help:      "Total requests rejected with 429 by the rate limiter.",
	})

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "loticredit",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loticredit", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loticredit", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loticredit", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loticredit", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loticredit", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ScoreEvaluationsTotal,
		ScoreValue,
		RejectedFactorsTotal,
		LoanDecisionsTotal,
		ApplicationsExpiredTotal,
		SettingsSavedTotal,
		CacheRequestsTotal,
		RateLimitedTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		GoroutineCount,
	)
}

// ObserveEvaluation records one score evaluation.
func ObserveEvaluation(source, rating string, score int) {
	ScoreEvaluationsTotal.WithLabelValues(rating, source).Inc()
	ScoreValue.Observe(float64(score))
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern keeps label cardinality bounded
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
