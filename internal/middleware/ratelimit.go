// Package middleware holds the HTTP middleware of the event webhook.
package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

// RateLimitConfig holds configuration for the rate limiter middleware.
type RateLimitConfig struct {
	RequestsPerSecond float64 // sustained rate; <= 0 disables limiting
	Burst             int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func (s *limiterSet) get(ip string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	cl, ok := s.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst)}
		s.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func (s *limiterSet) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ip, cl := range s.clients {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(s.clients, ip)
		}
	}
}

// RateLimiter enforces a per-client token bucket keyed by remote IP. Requests
// over the limit get 429 with a Retry-After header. Idle clients are dropped
// periodically until ctx is done.
func RateLimiter(ctx context.Context, cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	set := &limiterSet{cfg: cfg, clients: make(map[string]*clientLimiter)}

	go func() {
		t := time.NewTicker(limiterSweepInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				set.sweep(now)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			limiter := set.get(clientIP(r), now)

			res := limiter.ReserveN(now, 1)
			if !res.OK() {
				writeTooManyRequests(w, 0)
				return
			}
			if delay := res.DelayFrom(now); delay > 0 {
				res.CancelAt(now)
				writeTooManyRequests(w, int(delay.Seconds())+1)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(now))))
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the host part of RemoteAddr. Forwarding headers are ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    http.StatusTooManyRequests,
		"message": "rate limit exceeded",
	})
}
