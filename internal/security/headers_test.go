package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestHeadersMiddleware(t *testing.T) {
	router := newRouter(HeadersMiddleware())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	headers := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
		"Content-Security-Policy": contentSecurityPolicy,
	}
	for header, expected := range headers {
		if got := w.Header().Get(header); got != expected {
			t.Errorf("%s = %q, want %q", header, got, expected)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name            string
		allowedOrigins  []string
		requestOrigin   string
		wantOrigin      bool
		wantCredentials bool
	}{
		{"allowed origin", []string{"https://app.loticredit.com"}, "https://app.loticredit.com", true, true},
		{"trailing slash in config", []string{"https://app.loticredit.com/"}, "https://app.loticredit.com", true, true},
		{"wildcard allows all", []string{"*"}, "https://anything.example", true, false},
		{"empty list allows all", nil, "https://anything.example", true, false},
		{"disallowed origin", []string{"https://app.loticredit.com"}, "https://evil.example", false, false},
		{"no origin header", []string{"*"}, "", false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(CORSMiddleware(tc.allowedOrigins))

			req := httptest.NewRequest("GET", "/test", nil)
			if tc.requestOrigin != "" {
				req.Header.Set("Origin", tc.requestOrigin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin") != ""; got != tc.wantOrigin {
				t.Errorf("Allow-Origin present = %v, want %v", got, tc.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tc.wantCredentials {
				t.Errorf("Allow-Credentials = %v, want %v", got, tc.wantCredentials)
			}
			if w.Header().Get("Vary") != "Origin" {
				t.Error("Vary: Origin not set")
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newRouter(CORSMiddleware([]string{"*"}))

	req := httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "https://app.loticredit.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if methods := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, "PATCH") {
		t.Errorf("Allow-Methods should include PATCH, got %q", methods)
	}
}
