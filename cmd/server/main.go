// LotiCredit - credit scoring and lending decision API
package main

import (
	"context"
	"os"

	"github.com/loticredit/loticredit/internal/config"
	"github.com/loticredit/loticredit/internal/logging"
	"github.com/loticredit/loticredit/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting loticredit",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)
	logger.Info("configuration loaded",
		"env", cfg.Env,
		"database", cfg.DatabaseURL != "",
		"redis", cfg.RedisURL != "",
		"inquiry_ceiling", cfg.InquiryCeiling,
		"application_expiry_days", cfg.ApplicationExpiryDays,
	)

	server.Version = Version
	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
