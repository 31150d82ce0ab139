package mcpserver

import (
	"github.com/loticredit/loticredit/internal/score"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all LotiCredit tools registered.
func NewMCPServer(cfg Config, version string) *server.MCPServer {
	s := server.NewMCPServer("loticredit", version)
	h := NewHandlers(NewClient(cfg), score.NewEngine(score.Config{InquiryCeiling: cfg.InquiryCeiling}))

	s.AddTool(ToolEvaluateCreditScore, h.HandleEvaluateCreditScore)
	s.AddTool(ToolGetRatingBands, h.HandleGetRatingBands)
	s.AddTool(ToolGetScoreHistory, h.HandleGetScoreHistory)
	s.AddTool(ToolGetScoreTrend, h.HandleGetScoreTrend)
	s.AddTool(ToolRecordScore, h.HandleRecordScore)

	return s
}
