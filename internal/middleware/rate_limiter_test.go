package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimiterAllowsBurstThenThrottles(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 2, time.Hour)

	if !limiter.Allow("1.2.3.4") {
		t.Fatal("first request should be allowed")
	}
	if !limiter.Allow("1.2.3.4") {
		t.Fatal("burst request should be allowed")
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatal("request beyond the burst should be throttled")
	}

	// Another key has its own budget.
	if !limiter.Allow("5.6.7.8") {
		t.Fatal("unrelated key must not share the budget")
	}
}

func TestIPRateLimiterExpiresIdleVisitors(t *testing.T) {
	l := NewIPRateLimiter(1, time.Hour, 1, time.Minute).(*ipRateLimiter)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("1.2.3.4")
	if len(l.visitors) != 1 {
		t.Fatalf("visitors = %d", len(l.visitors))
	}

	now = now.Add(2 * time.Minute)
	l.Allow("5.6.7.8")
	if _, ok := l.visitors["1.2.3.4"]; ok {
		t.Fatal("idle visitor should have been evicted")
	}
}

func TestLimitUploadsReturns429(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Hour)
	handler := LimitUploads(limiter, "uploads")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/videos", nil)
	req.RemoteAddr = "1.2.3.4:5000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
}

func TestLimitUploadsNilLimiterDisablesGuard(t *testing.T) {
	handler := LimitUploads(nil, "uploads")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/media/videos", nil))
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("clientIP = %q", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("clientIP = %q", got)
	}
}
