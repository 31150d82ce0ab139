// LotiCredit MCP Server - exposes credit scoring as MCP tools for LLMs
package main

import (
	"os"
	"strconv"

	"github.com/mark3labs/mcp-go/server"

	"github.com/loticredit/loticredit/internal/logging"
	"github.com/loticredit/loticredit/internal/mcpserver"
)

// Version is set by ldflags.
var Version = "dev"

func main() {
	// stdout carries the MCP protocol; logs go to stderr.
	logger := logging.NewWithWriter(os.Stderr, envOrDefault("LOG_LEVEL", "info"), "text")

	ceiling, err := strconv.Atoi(envOrDefault("INQUIRY_CEILING", "0"))
	if err != nil {
		logger.Error("invalid INQUIRY_CEILING", "error", err)
		os.Exit(1)
	}

	cfg := mcpserver.Config{
		APIURL:         envOrDefault("LOTICREDIT_API_URL", "http://localhost:8080"),
		InquiryCeiling: ceiling,
	}
	logger.Info("starting loticredit MCP server", "version", Version, "api_url", cfg.APIURL)

	s := mcpserver.NewMCPServer(cfg, Version)
	if err := server.ServeStdio(s); err != nil {
		logger.Error("MCP server error", "error", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
