package score

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupHandlerTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewEngine(DefaultConfig())).RegisterRoutes(r.Group("/v1"))
	return r
}

func postEvaluate(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/score/evaluate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Evaluate_200(t *testing.T) {
	router := setupHandlerTestRouter()

	w := postEvaluate(t, router, `{
		"paymentHistoryRatio": 0.95,
		"utilizationRatio": 0.2,
		"historyLengthYears": 5,
		"creditMixScore": 0.7,
		"recentInquiries": 1
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp EvaluateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Result.Score != 739 || resp.Result.Rating != RatingGood {
		t.Errorf("Expected 739/good, got %+v", resp.Result)
	}
	if resp.Label != "Good" {
		t.Errorf("Expected label Good, got %q", resp.Label)
	}
	if resp.Breakdown.Score != resp.Result.Score {
		t.Error("breakdown score should match result")
	}
	if len(resp.Indicators) != 5 {
		t.Errorf("Expected 5 indicators, got %d", len(resp.Indicators))
	}
}

func TestHandler_Evaluate_DerivesFromTallies(t *testing.T) {
	router := setupHandlerTestRouter()

	w := postEvaluate(t, router, `{
		"paymentHistoryRatio": 0,
		"utilizationRatio": 1,
		"historyLengthYears": 10,
		"creditMixScore": 1,
		"recentInquiries": 0,
		"payments": {"onTime": 50},
		"accounts": [{"name": "card", "used": 0, "limit": 5000}]
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp EvaluateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Factors.PaymentHistoryRatio != 1 || resp.Factors.UtilizationRatio != 0 {
		t.Errorf("Expected derived factors, got %+v", resp.Factors)
	}
	if resp.Result.Score != MaxScore {
		t.Errorf("Expected %d, got %d", MaxScore, resp.Result.Score)
	}
}

func TestHandler_Evaluate_OutOfRangeStillScores(t *testing.T) {
	router := setupHandlerTestRouter()

	w := postEvaluate(t, router, `{
		"paymentHistoryRatio": -5,
		"utilizationRatio": 2,
		"historyLengthYears": -3,
		"creditMixScore": 1.5,
		"recentInquiries": -1
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp EvaluateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Result.Score < MinScore || resp.Result.Score > MaxScore {
		t.Errorf("score out of range: %d", resp.Result.Score)
	}
}

func TestHandler_Evaluate_400_BadJSON(t *testing.T) {
	router := setupHandlerTestRouter()

	w := postEvaluate(t, router, `{"paymentHistoryRatio": "high"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != "invalid_request" {
		t.Errorf("Expected invalid_request, got %s", resp.Error)
	}
}

func TestHandler_ListBands(t *testing.T) {
	router := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/score/bands", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Bands          []Band `json:"bands"`
		InquiryCeiling int    `json:"inquiryCeiling"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Bands) != 5 {
		t.Errorf("Expected 5 bands, got %d", len(resp.Bands))
	}
	if resp.InquiryCeiling != DefaultInquiryCeiling {
		t.Errorf("Expected ceiling %d, got %d", DefaultInquiryCeiling, resp.InquiryCeiling)
	}
}
