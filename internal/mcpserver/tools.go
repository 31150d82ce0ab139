package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the LotiCredit MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

// factorOptions are the five scoring inputs shared by every tool that scores.
var factorOptions = []mcp.ToolOption{
	mcp.WithNumber("payment_history_ratio",
		mcp.Required(),
		mcp.Description("Share of payments made on time, 0 to 1 (e.g. 0.95)")),
	mcp.WithNumber("utilization_ratio",
		mcp.Required(),
		mcp.Description("Revolving balance over total credit limit, 0 to 1 (e.g. 0.2). Lower is better.")),
	mcp.WithNumber("history_length_years",
		mcp.Required(),
		mcp.Description("Age of the credit history in years. Saturates at 10.")),
	mcp.WithNumber("credit_mix_score",
		mcp.Required(),
		mcp.Description("Diversity of account types, 0 to 1")),
	mcp.WithNumber("recent_inquiries",
		mcp.Required(),
		mcp.Description("Hard inquiries in the recent window (whole number)")),
}

func withFactors(name string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append(opts, factorOptions...)...)
}

var ToolEvaluateCreditScore = withFactors("evaluate_credit_score",
	mcp.WithDescription(
		"Compute a credit score (300-850) and rating band from five factors. "+
			"Returns the per-component breakdown and risk indicators. Nothing is stored."),
)

var ToolGetRatingBands = mcp.NewTool("get_rating_bands",
	mcp.WithDescription(
		"List the rating bands (Poor, Fair, Good, Very Good, Excellent) with their score ranges."),
)

var ToolGetScoreHistory = mcp.NewTool("get_score_history",
	mcp.WithDescription(
		"Fetch a consumer's recorded score snapshots, newest first. "+
			"Pass the returned cursor to get the next page."),
	mcp.WithString("consumer_id",
		mcp.Required(),
		mcp.Description("Consumer identifier")),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)")),
	mcp.WithString("cursor",
		mcp.Description("Cursor from a previous page")),
)

var ToolGetScoreTrend = mcp.NewTool("get_score_trend",
	mcp.WithDescription(
		"Summarize how a consumer's score moved over their most recent snapshots, oldest first, "+
			"with the net change."),
	mcp.WithString("consumer_id",
		mcp.Required(),
		mcp.Description("Consumer identifier")),
	mcp.WithNumber("points",
		mcp.Description("Number of snapshots to include (default 12, max 60)")),
)

var ToolRecordScore = withFactors("record_score",
	mcp.WithDescription(
		"Score a consumer and store the result as their latest snapshot. "+
			"Subscribers to the consumer's realtime feed are notified."),
	mcp.WithString("consumer_id",
		mcp.Required(),
		mcp.Description("Consumer identifier")),
)
