// Package server wires the LotiCredit services into a gin HTTP server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/loticredit/loticredit/internal/cache"
	"github.com/loticredit/loticredit/internal/config"
	"github.com/loticredit/loticredit/internal/health"
	"github.com/loticredit/loticredit/internal/history"
	"github.com/loticredit/loticredit/internal/idgen"
	"github.com/loticredit/loticredit/internal/lending"
	"github.com/loticredit/loticredit/internal/logging"
	"github.com/loticredit/loticredit/internal/metrics"
	"github.com/loticredit/loticredit/internal/ratelimit"
	"github.com/loticredit/loticredit/internal/realtime"
	"github.com/loticredit/loticredit/internal/retry"
	"github.com/loticredit/loticredit/internal/score"
	"github.com/loticredit/loticredit/internal/security"
	"github.com/loticredit/loticredit/internal/settings"
	"github.com/loticredit/loticredit/internal/traces"
	"github.com/loticredit/loticredit/internal/validation"
)

// Version is reported by /health. Overridden by cmd/server from ldflags.
var Version = "dev"

// cachePrefix namespaces every Redis key this service writes.
const cachePrefix = "loticredit:"

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	db           *sql.DB // nil if using in-memory
	cache        cache.Cache
	engine       *score.Engine
	history      *history.Service
	lending      *lending.Service
	lendingTimer *lending.Timer
	settings     *settings.Service
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	checks       *health.Registry
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCache overrides the cache chosen from config (for testing).
func WithCache(c cache.Cache) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
		checks: health.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	s.engine = score.NewEngine(score.Config{InquiryCeiling: cfg.InquiryCeiling})
	s.realtimeHub = realtime.NewHub(logging.Component(s.logger, "realtime"), cfg.CORSOrigins...)

	if err := s.initCache(); err != nil {
		return nil, err
	}

	var (
		historyStore  history.Store
		lendingStore  lending.Store
		settingsStore settings.Store
	)

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Postgres often comes up after us in container deployments.
		err = retry.Do(ctx, 5, 500*time.Millisecond, func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return db.PingContext(pingCtx)
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		hs, ls, ss := history.NewPostgresStore(db), lending.NewPostgresStore(db), settings.NewPostgresStore(db)

		// goose owns the schema outside development
		if cfg.IsDevelopment() {
			for name, m := range map[string]interface{ Migrate(context.Context) error }{
				"history": hs, "lending": ls, "settings": ss,
			} {
				if err := m.Migrate(ctx); err != nil {
					_ = db.Close()
					return nil, fmt.Errorf("bootstrap %s schema: %w", name, err)
				}
			}
		}

		historyStore, lendingStore, settingsStore = hs, ls, ss
		s.checks.Register("database", health.PingChecker("database", db))
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		historyStore = history.NewMemoryStore()
		lendingStore = lending.NewMemoryStore()
		settingsStore = settings.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	s.history = history.NewService(historyStore, s.engine, logging.Component(s.logger, "history")).
		WithCache(s.cache, cfg.ScoreCacheTTL).
		WithEvents(s.realtimeHub)

	s.settings = settings.NewService(settingsStore, logging.Component(s.logger, "settings")).
		WithCache(s.cache, cfg.ScoreCacheTTL)

	s.lending = lending.NewService(lendingStore, s.engine, s.settings, logging.Component(s.logger, "lending")).
		WithScoreSource(s.history).
		WithEvents(s.realtimeHub)
	s.lendingTimer = lending.NewTimer(s.lending, cfg.ApplicationTTL(), logging.Component(s.logger, "lending"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

// initCache picks Redis when REDIS_URL is set. A cache injected via
// WithCache takes precedence.
func (s *Server) initCache() error {
	if s.cache == nil {
		if s.cfg.RedisURL == "" {
			s.cache = cache.NewMemoryCache()
			s.logger.Info("using in-memory cache")
		} else {
			rc, err := cache.NewRedisCache(s.cfg.RedisURL, cachePrefix)
			if err != nil {
				return err
			}
			s.cache = rc
			s.logger.Info("using Redis cache", "url", maskDSN(s.cfg.RedisURL))
		}
	}
	s.checks.Register("cache", health.PingFunc("cache", s.cache.Ping))
	return nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.CORSOrigins))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	s.rateLimiter = ratelimit.New(ratelimit.FromRPM(s.cfg.RateLimitRPM))
	s.router.Use(s.rateLimiter.Middleware())

	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || !validation.IsValidID(requestID) {
			requestID = idgen.RequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}

		logger := logging.L(c.Request.Context())
		switch {
		case status >= 500:
			logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			logger.Warn("request completed", attrs...)
		case path == "/health/live" || path == "/health/ready" || path == "/metrics":
			logger.Debug("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	lendingHandler := lending.NewHandler(s.lending)
	settingsHandler := settings.NewHandler(s.settings)

	v1 := s.router.Group("/v1")
	v1.Use(validation.IDParamMiddleware("id"))
	score.NewHandler(s.engine).RegisterRoutes(v1)
	history.NewHandler(s.history).RegisterRoutes(v1)
	lendingHandler.RegisterRoutes(v1)
	settingsHandler.RegisterRoutes(v1)
	v1.GET("/realtime/stats", s.realtimeStatsHandler)

	// Paths the original web client posts to.
	legacy := s.router.Group("/api")
	lendingHandler.RegisterLegacyRoutes(legacy)
	settingsHandler.RegisterLegacyRoutes(legacy)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No route for " + c.Request.Method + " " + c.Request.URL.Path,
		})
	})
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ok, statuses := s.checks.CheckAll(ctx)

	status, code := "healthy", http.StatusOK
	if !ok {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:    status,
		Version:   Version,
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) realtimeStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.realtimeHub.Stats())
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server and background workers, and blocks until ctx
// is cancelled, SIGINT/SIGTERM arrives, or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	shutdownTracing, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("tracing init failed, continuing without it", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer tcancel()
		if err := shutdownTracing(tctx); err != nil {
			s.logger.Error("tracing shutdown error", "error", err)
		}
	}()

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)
	go s.lendingTimer.Start(runCtx)
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	s.ready.Store(true)
	s.logger.Info("server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		s.ready.Store(false)
		cancel()
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// drainDelay gives load balancers time to notice /health/ready failing.
var drainDelay = 5 * time.Second

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	time.Sleep(drainDelay)

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.lendingTimer.Stop()
	s.rateLimiter.Stop()

	if closer, ok := s.cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error("cache close error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.healthy.Store(false)
	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
