package oauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3, false)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("request beyond burst should be denied")
	}

	// A different IP has its own bucket
	if !rl.Allow("10.0.0.2") {
		t.Error("different IP should not share the exhausted bucket")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := NewHandler(Config{
		Resource:  "https://mcp.example.com",
		RateLimit: RateLimitConfig{Rate: 1, Burst: 1},
	}, newTestStore(t))

	limited := handler.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"

	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	limited.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	handler := NewHandler(Config{Resource: "https://mcp.example.com"}, newTestStore(t))

	passthrough := handler.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		passthrough.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := getClientIP(req, false); got != "10.0.0.1" {
		t.Errorf("untrusted proxy: ip = %q, want 10.0.0.1", got)
	}
	if got := getClientIP(req, true); got != "203.0.113.7" {
		t.Errorf("trusted proxy: ip = %q, want 203.0.113.7", got)
	}
}
