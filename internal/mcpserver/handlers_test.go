package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loticredit/loticredit/internal/history"
	"github.com/loticredit/loticredit/internal/score"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newHandlers(apiURL string) *Handlers {
	client := NewClient(Config{APIURL: apiURL, Timeout: 5 * time.Second})
	client.baseDelay = time.Millisecond
	return NewHandlers(client, score.NewEngine(score.DefaultConfig()))
}

// newAPI serves the real history routes over an in-memory store.
func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := history.NewService(history.NewMemoryStore(), score.NewEngine(score.DefaultConfig()), logger)

	r := gin.New()
	history.NewHandler(svc).RegisterRoutes(r.Group("/v1"))
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func goodFactorArgs(extra map[string]any) map[string]any {
	args := map[string]any{
		"payment_history_ratio": 0.95,
		"utilization_ratio":     0.2,
		"history_length_years":  5.0,
		"credit_mix_score":      0.7,
		"recent_inquiries":      1.0,
	}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// In-process tools
// ============================================================

func TestHandleEvaluateCreditScore(t *testing.T) {
	h := newHandlers("http://unused")

	result, err := h.HandleEvaluateCreditScore(context.Background(), makeRequest(goodFactorArgs(nil)))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Credit score: 739 (Good)")
	assert.Contains(t, text, "Payment history")
	assert.Contains(t, text, "Risk indicators")
	assert.Contains(t, text, "High Credit Utilization")
}

func TestHandleEvaluateCreditScore_MissingFactor(t *testing.T) {
	h := newHandlers("http://unused")
	args := goodFactorArgs(nil)
	delete(args, "credit_mix_score")

	result, err := h.HandleEvaluateCreditScore(context.Background(), makeRequest(args))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "credit_mix_score")
}

func TestHandleEvaluateCreditScore_FractionalInquiries(t *testing.T) {
	h := newHandlers("http://unused")

	result, err := h.HandleEvaluateCreditScore(context.Background(),
		makeRequest(goodFactorArgs(map[string]any{"recent_inquiries": 1.5})))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "whole number")
}

func TestHandleGetRatingBands(t *testing.T) {
	h := newHandlers("http://unused")

	result, err := h.HandleGetRatingBands(context.Background(), makeRequest(nil))
	require.NoError(t, err)

	text := resultText(t, result)
	for _, label := range []string{"Poor", "Fair", "Good", "Very Good", "Excellent"} {
		assert.Contains(t, text, label)
	}
	assert.Contains(t, text, "800-850")
	assert.Contains(t, text, "Inquiry ceiling: 5")
}

// ============================================================
// API-backed tools against the real history routes
// ============================================================

func TestRecordThenHistoryAndTrend(t *testing.T) {
	api := newAPI(t)
	h := newHandlers(api.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := h.HandleRecordScore(ctx, makeRequest(goodFactorArgs(map[string]any{"consumer_id": "c-1"})))
		require.NoError(t, err)
		require.False(t, result.IsError, resultText(t, result))
		assert.Contains(t, resultText(t, result), "Recorded score 739 (Good) for c-1")
	}

	result, err := h.HandleGetScoreHistory(ctx, makeRequest(map[string]any{"consumer_id": "c-1", "limit": 2.0}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Score history for c-1")
	assert.Contains(t, text, "Next cursor:")

	result, err = h.HandleGetScoreTrend(ctx, makeRequest(map[string]any{"consumer_id": "c-1"}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.Contains(t, text, "over 3 snapshot(s)")
	assert.Contains(t, text, "No net change")
}

func TestHandleGetScoreHistory_Empty(t *testing.T) {
	h := newHandlers(newAPI(t).URL)

	result, err := h.HandleGetScoreHistory(context.Background(), makeRequest(map[string]any{"consumer_id": "nobody"}))
	require.NoError(t, err)
	assert.Equal(t, "No scores recorded for nobody.", resultText(t, result))
}

func TestHandleGetScoreTrend_NotFound(t *testing.T) {
	h := newHandlers(newAPI(t).URL)

	result, err := h.HandleGetScoreTrend(context.Background(), makeRequest(map[string]any{"consumer_id": "nobody"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No scores recorded for nobody yet.")
}

func TestHandleGetScoreHistory_InvalidCursor(t *testing.T) {
	h := newHandlers(newAPI(t).URL)

	result, err := h.HandleGetScoreHistory(context.Background(),
		makeRequest(map[string]any{"consumer_id": "c-1", "cursor": "!!!"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "400")
}

func TestHandlers_MissingConsumerID(t *testing.T) {
	h := newHandlers("http://unused")
	ctx := context.Background()

	for name, handle := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"history": h.HandleGetScoreHistory,
		"trend":   h.HandleGetScoreTrend,
		"record":  h.HandleRecordScore,
	} {
		result, err := handle(ctx, makeRequest(goodFactorArgs(nil)))
		require.NoError(t, err, name)
		assert.True(t, result.IsError, name)
		assert.Contains(t, resultText(t, result), "consumer_id is required", name)
	}
}

// ============================================================
// Client behavior
// ============================================================

func TestClient_RetriesGetOn5xx(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"snapshots":[],"hasMore":false}`))
	}))
	defer ts.Close()

	h := newHandlers(ts.URL)
	_, err := h.client.ScoreHistory(context.Background(), "c-1", 0, "")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetry4xx(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_cursor", "message": "invalid cursor"})
	}))
	defer ts.Close()

	h := newHandlers(ts.URL)
	_, err := h.client.ScoreHistory(context.Background(), "c-1", 0, "bad")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_cursor", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	h := newHandlers(ts.URL)
	_, err := h.client.RecordScore(context.Background(), "c-1", score.Factors{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_QueryParams(t *testing.T) {
	var gotPath, gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	h := newHandlers(ts.URL)
	_, err := h.client.ScoreHistory(context.Background(), "c-7", 5, "abc")
	require.NoError(t, err)
	assert.Equal(t, "/v1/consumers/c-7/score/history", gotPath)
	assert.Equal(t, "cursor=abc&limit=5", gotQuery)
}

func TestClient_ConnectionRefused(t *testing.T) {
	h := newHandlers("http://127.0.0.1:1")
	_, err := h.client.ScoreTrend(context.Background(), "c-1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestNewMCPServer(t *testing.T) {
	s := NewMCPServer(Config{APIURL: "http://localhost:8080"}, "test")
	require.NotNil(t, s)
}
