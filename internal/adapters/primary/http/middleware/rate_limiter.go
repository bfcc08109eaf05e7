package middleware

import (
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// RateLimiterConfig sets the token bucket applied to each client address.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// TTL drops the bucket of a client that has been quiet this long.
	TTL time.Duration
	// MaxClients bounds the number of tracked addresses. Zero means 10000.
	MaxClients int
}

// RateLimiter throttles requests per client address.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *expirable.LRU[string, *rate.Limiter]
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	size := cfg.MaxClients
	if size <= 0 {
		size = maxTrackedClients
	}
	return &RateLimiter{
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.BurstSize,
		buckets: expirable.NewLRU[string, *rate.Limiter](size, nil, cfg.TTL),
	}
}

// Allow spends one token from the bucket of key.
func (rl *RateLimiter) Allow(key string) bool {
	limiter, ok := rl.buckets.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.buckets.Add(key, limiter)
	}
	return limiter.Allow()
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.Allow(clientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Too many requests","code":"RATE_LIMITED"}`))
	})
}
