package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_Burst(t *testing.T) {
	limiter := NewLimiter(1, 2)

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if limiter.Allow("a") {
		t.Error("third request should be limited")
	}
	if !limiter.Allow("b") {
		t.Error("keys must not share a bucket")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("a") {
			t.Fatalf("request %d limited with rps=0", i)
		}
	}
}

func TestLimiter_Prune(t *testing.T) {
	now := time.Unix(1000, 0)
	limiter := NewLimiter(10, 1)
	limiter.now = func() time.Time { return now }

	limiter.Allow("old")
	now = now.Add(time.Minute)
	limiter.Allow("new")

	if removed := limiter.Prune(30 * time.Second); removed != 1 {
		t.Fatalf("Prune() removed %d, want 1", removed)
	}
	if _, ok := limiter.entries["new"]; !ok {
		t.Error("recent bucket was pruned")
	}
}

func TestMiddleware(t *testing.T) {
	limiter := NewLimiter(1, 1)
	handler := limiter.Middleware(func(*http.Request) string { return "k" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/tasks", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("first request got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/tasks", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request got %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name          string
		remoteAddr    string
		xForwardedFor string
		want          string
	}{
		{"direct", "192.168.1.1:12345", "", "192.168.1.1"},
		{"proxied", "127.0.0.1:12345", "203.0.113.1, 10.0.0.1", "203.0.113.1"},
		{"no port", "unix", "", "unix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if got := ClientKey(req); got != tt.want {
				t.Errorf("ClientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
