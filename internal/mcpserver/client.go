package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/loticredit/loticredit/internal/retry"
	"github.com/loticredit/loticredit/internal/score"
)

// Config holds the configuration for reaching the LotiCredit API.
type Config struct {
	APIURL         string        // Base URL, e.g. "http://localhost:8080"
	InquiryCeiling int           // for in-process scoring; 0 uses the default
	Timeout        time.Duration // per request; 0 means 30s
	MaxAttempts    int           // for idempotent GETs; 0 means 3
}

// Client is a thin HTTP client for the LotiCredit score API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	baseDelay  time.Duration
}

// NewClient creates a new API client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseDelay:  200 * time.Millisecond,
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error (%d)", e.StatusCode)
}

// doRequest sends one request and returns the response body. GETs are
// retried on transport errors and 5xx; 4xx responses are never retried.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = c.cfg.MaxAttempts
	}

	var out json.RawMessage
	err = retry.Do(ctx, attempts, c.baseDelay, func(ctx context.Context) error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			var envelope struct {
				Error   string `json:"error"`
				Message string `json:"message"`
			}
			if json.Unmarshal(respBody, &envelope) == nil && envelope.Message != "" {
				apiErr.Code, apiErr.Message = envelope.Error, envelope.Message
			} else {
				apiErr.Message = string(respBody)
			}
			if resp.StatusCode < 500 {
				return retry.Permanent(apiErr)
			}
			return apiErr
		}
		out = respBody
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScoreHistory fetches one page of a consumer's snapshots.
func (c *Client) ScoreHistory(ctx context.Context, consumerID string, limit int, cursor string) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/consumers/"+url.PathEscape(consumerID)+"/score/history", q, nil)
}

// ScoreTrend fetches the consumer's recent score trend.
func (c *Client) ScoreTrend(ctx context.Context, consumerID string, points int) (json.RawMessage, error) {
	q := url.Values{}
	if points > 0 {
		q.Set("points", strconv.Itoa(points))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/consumers/"+url.PathEscape(consumerID)+"/score/trend", q, nil)
}

// RecordScore stores a new snapshot for the consumer.
func (c *Client) RecordScore(ctx context.Context, consumerID string, f score.Factors) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/consumers/"+url.PathEscape(consumerID)+"/score", nil, f)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
