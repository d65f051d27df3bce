package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return RateLimiter(ctx, cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
}

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/events/ingest", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	h := limitedHandler(t, RateLimitConfig{RequestsPerSecond: 100, Burst: 10})
	for range 5 {
		rec := hit(h, "")
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	h := limitedHandler(t, RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	for range 2 {
		require.Equal(t, http.StatusAccepted, hit(h, "").Code)
	}

	rec := hit(h, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.InDelta(t, float64(429), body["code"], 0.001)
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	h := limitedHandler(t, RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	require.Equal(t, http.StatusAccepted, hit(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:5678").Code)
	assert.Equal(t, http.StatusAccepted, hit(h, "10.0.0.2:1234").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	h := limitedHandler(t, RateLimitConfig{})
	for range 20 {
		rec := hit(h, "")
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestLimiterSet_SweepDropsIdleClients(t *testing.T) {
	set := &limiterSet{cfg: RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, clients: map[string]*clientLimiter{}}
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	set.get("10.0.0.1", base)
	set.get("10.0.0.2", base.Add(limiterIdleTTL))

	set.sweep(base.Add(limiterIdleTTL + time.Second))
	assert.NotContains(t, set.clients, "10.0.0.1")
	assert.Contains(t, set.clients, "10.0.0.2")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"IPv4 with port", "192.168.1.1:12345", "", "192.168.1.1"},
		{"IPv6 with port", "[::1]:12345", "", "::1"},
		{"no port", "192.168.1.1", "", "192.168.1.1"},
		{"forwarded header ignored", "10.0.0.1:1234", "203.0.113.50", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
