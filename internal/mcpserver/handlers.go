package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/loticredit/loticredit/internal/history"
	"github.com/loticredit/loticredit/internal/metrics"
	"github.com/loticredit/loticredit/internal/score"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *Client
	engine *score.Engine
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client, engine *score.Engine) *Handlers {
	return &Handlers{client: client, engine: engine}
}

// HandleEvaluateCreditScore scores the supplied factors in process.
func (h *Handlers) HandleEvaluateCreditScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f, err := factorsFromRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	b := h.engine.Breakdown(f)
	metrics.ObserveEvaluation("mcp", string(b.Rating), b.Score)
	return mcp.NewToolResultText(formatEvaluation(b, score.Indicators(f))), nil
}

// HandleGetRatingBands lists the rating bands.
func (h *Handlers) HandleGetRatingBands(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	sb.WriteString("Rating bands:\n")
	for _, b := range score.Bands() {
		fmt.Fprintf(&sb, "  %-10s %d-%d\n", b.Label, b.Min, b.Max)
	}
	fmt.Fprintf(&sb, "\nInquiry ceiling: %d (this many recent inquiries or more earn no inquiry points)\n", h.engine.InquiryCeiling())
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetScoreHistory fetches recorded snapshots over the API.
func (h *Handlers) HandleGetScoreHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	consumerID := req.GetString("consumer_id", "")
	if consumerID == "" {
		return mcp.NewToolResultError("consumer_id is required"), nil
	}

	raw, err := h.client.ScoreHistory(ctx, consumerID, req.GetInt("limit", 0), req.GetString("cursor", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load score history: %v", err)), nil
	}

	var page history.Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse history: %v", err)), nil
	}
	return mcp.NewToolResultText(formatHistory(consumerID, &page)), nil
}

// HandleGetScoreTrend fetches the trend summary over the API.
func (h *Handlers) HandleGetScoreTrend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	consumerID := req.GetString("consumer_id", "")
	if consumerID == "" {
		return mcp.NewToolResultError("consumer_id is required"), nil
	}

	raw, err := h.client.ScoreTrend(ctx, consumerID, req.GetInt("points", 0))
	if IsNotFound(err) {
		return mcp.NewToolResultText(fmt.Sprintf("No scores recorded for %s yet.", consumerID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load score trend: %v", err)), nil
	}

	var trend history.Trend
	if err := json.Unmarshal(raw, &trend); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse trend: %v", err)), nil
	}
	return mcp.NewToolResultText(formatTrend(&trend)), nil
}

// HandleRecordScore stores a snapshot over the API.
func (h *Handlers) HandleRecordScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	consumerID := req.GetString("consumer_id", "")
	if consumerID == "" {
		return mcp.NewToolResultError("consumer_id is required"), nil
	}
	f, err := factorsFromRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := h.client.RecordScore(ctx, consumerID, f)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to record score: %v", err)), nil
	}

	var resp struct {
		Snapshot history.Snapshot `json:"snapshot"`
		Label    string           `json:"label"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse response: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Recorded score %d (%s) for %s.\nSnapshot: %s",
		resp.Snapshot.Score, resp.Label, consumerID, resp.Snapshot.ID)), nil
}

// factorsFromRequest reads the five required factor arguments.
func factorsFromRequest(req mcp.CallToolRequest) (score.Factors, error) {
	var f score.Factors
	for _, fld := range []struct {
		name string
		dst  *float64
	}{
		{"payment_history_ratio", &f.PaymentHistoryRatio},
		{"utilization_ratio", &f.UtilizationRatio},
		{"history_length_years", &f.HistoryLengthYears},
		{"credit_mix_score", &f.CreditMixScore},
	} {
		v, err := req.RequireFloat(fld.name)
		if err != nil {
			return f, fmt.Errorf("%s is required and must be a number", fld.name)
		}
		*fld.dst = v
	}

	inq, err := req.RequireFloat("recent_inquiries")
	if err != nil {
		return f, fmt.Errorf("recent_inquiries is required and must be a number")
	}
	if inq != math.Trunc(inq) {
		return f, fmt.Errorf("recent_inquiries must be a whole number")
	}
	f.RecentInquiries = int(inq)

	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

func formatEvaluation(b score.Breakdown, indicators []score.Indicator) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Credit score: %d (%s)\n\n", b.Score, b.Rating.Label())
	sb.WriteString("Breakdown (points out of 100):\n")
	fmt.Fprintf(&sb, "  Payment history: %5.1f\n", b.Payment)
	fmt.Fprintf(&sb, "  Utilization:     %5.1f\n", b.Utilization)
	fmt.Fprintf(&sb, "  History length:  %5.1f\n", b.History)
	fmt.Fprintf(&sb, "  Credit mix:      %5.1f\n", b.Mix)
	fmt.Fprintf(&sb, "  Inquiries:       %5.1f\n", b.Inquiry)
	fmt.Fprintf(&sb, "  Total:           %5.1f\n", b.RawTotal)

	sb.WriteString("\nRisk indicators:\n")
	for _, ind := range indicators {
		fmt.Fprintf(&sb, "  [%s] %s: %s\n", strings.ToUpper(string(ind.Level)), ind.Name, ind.Description)
	}
	return sb.String()
}

func formatHistory(consumerID string, page *history.Page) string {
	if len(page.Snapshots) == 0 {
		return fmt.Sprintf("No scores recorded for %s.", consumerID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Score history for %s (newest first):\n", consumerID)
	for _, s := range page.Snapshots {
		fmt.Fprintf(&sb, "  %s  %d  %s\n", s.CreatedAt.UTC().Format(time.RFC3339), s.Score, s.Rating.Label())
	}
	if page.HasMore {
		fmt.Fprintf(&sb, "\nMore available. Next cursor: %s\n", page.NextCursor)
	}
	return sb.String()
}

func formatTrend(t *history.Trend) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Score trend for %s over %d snapshot(s):\n", t.ConsumerID, len(t.Points))
	for _, p := range t.Points {
		fmt.Fprintf(&sb, "  %s  %d\n", p.At.UTC().Format("2006-01-02"), p.Score)
	}
	switch {
	case t.Delta > 0:
		fmt.Fprintf(&sb, "\nUp %d points.\n", t.Delta)
	case t.Delta < 0:
		fmt.Fprintf(&sb, "\nDown %d points.\n", -t.Delta)
	default:
		sb.WriteString("\nNo net change.\n")
	}
	return sb.String()
}
