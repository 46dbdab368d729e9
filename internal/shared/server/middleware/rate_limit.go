package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"sorot-backend/internal/shared/server/respond"
)

// RateLimiter tracks per-client token buckets keyed by IP.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	interval rate.Limit
	burst    int
}

// NewRateLimiter allows one request per interval with the given burst.
func NewRateLimiter(interval time.Duration, burst int) *RateLimiter {
	if interval <= 0 {
		interval = time.Second
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets:  make(map[string]*rate.Limiter),
		interval: rate.Every(interval),
		burst:    burst,
	}
}

func (l *RateLimiter) allow(key string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.interval, l.burst)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}

// RateLimit throttles requests per client IP on the API group. Status
// polling additionally has its own per-analysis limiter.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limiter.allow(c.ClientIP()) {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(1))
		respond.Error(c, http.StatusTooManyRequests, "Too many requests, slow down")
	}
}
