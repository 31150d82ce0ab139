// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Storage (both optional; in-memory implementations are used when empty)
	DatabaseURL string
	RedisURL    string

	// Tracing
	OTLPEndpoint string

	// Security
	RateLimitRPM int
	CORSOrigins  []string

	// Scoring
	InquiryCeiling int
	ScoreCacheTTL  time.Duration

	// Lending
	ApplicationExpiryDays int
}

const (
	DefaultPort                  = "8080"
	DefaultEnv                   = "development"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "json"
	DefaultRateLimit             = 120
	DefaultInquiryCeiling        = 5
	DefaultScoreCacheTTL         = 10 * time.Minute
	DefaultApplicationExpiryDays = 30
)

var validEnvs = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	ttl, err := getEnvDuration("SCORE_CACHE_TTL", DefaultScoreCacheTTL)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                  getEnv("PORT", DefaultPort),
		Env:                   getEnv("ENV", DefaultEnv),
		LogLevel:              getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:             getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPM:          int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
		CORSOrigins:           splitList(os.Getenv("CORS_ORIGINS")),
		InquiryCeiling:        int(getEnvInt64("INQUIRY_CEILING", DefaultInquiryCeiling)),
		ScoreCacheTTL:         ttl,
		ApplicationExpiryDays: int(getEnvInt64("APPLICATION_EXPIRY_DAYS", DefaultApplicationExpiryDays)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if !validEnvs[c.Env] {
		return fmt.Errorf("ENV must be one of development, staging, production (got %q)", c.Env)
	}
	if c.InquiryCeiling <= 0 {
		return fmt.Errorf("INQUIRY_CEILING must be positive")
	}
	if c.ScoreCacheTTL < 0 {
		return fmt.Errorf("SCORE_CACHE_TTL must not be negative")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}
	if c.ApplicationExpiryDays <= 0 {
		return fmt.Errorf("APPLICATION_EXPIRY_DAYS must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ApplicationTTL is the age after which undecided applications expire.
func (c *Config) ApplicationTTL() time.Duration {
	return time.Duration(c.ApplicationExpiryDays) * 24 * time.Hour
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
