// ratelimit.go implements per-user rate limiting using a token bucket algorithm.
//
// How token bucket works:
// - Each user gets a "bucket" with N tokens (N = the configured hourly limit)
// - Each request consumes 1 token
// - Tokens refill at a steady rate (N tokens per hour)
// - If the bucket is empty, the request is rejected with 429 Too Many Requests
//
// This is more sophisticated than a simple counter because it smooths out
// burst traffic naturally.
package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
)

// RateLimiter tracks request rates per user.
type RateLimiter struct {
	// Go Pattern: One mutex guards the whole map. Every check mutates its
	// bucket, so there is no read-only path that an RWMutex could speed up.
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   float64
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

// bucket tracks the token state for a single user.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// allowResult contains the result of a rate limit check,
// including header information for the response.
type allowResult struct {
	allowed    bool
	remaining  float64
	retryAfter time.Duration
}

// NewRateLimiter creates a limiter allowing perHour requests per user and
// starts its cleanup goroutine. Call Stop to end it.
func NewRateLimiter(perHour int) *RateLimiter {
	rl := newRateLimiter(perHour, time.Now)
	go rl.cleanup(10 * time.Minute)
	return rl
}

func newRateLimiter(perHour int, now func() time.Time) *RateLimiter {
	if perHour < 1 {
		perHour = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   float64(perHour),
		now:     now,
		stop:    make(chan struct{}),
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// RateLimit returns Gin middleware that enforces per-user rate limits. It
// must run after JWTAuth.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			// No identity = no rate limiting (auth middleware handles rejection)
			c.Next()
			return
		}

		// Check rate limit: this returns all info atomically to avoid race conditions
		result := rl.allow(userID)
		c.Header("X-RateLimit-Limit", formatFloat(rl.limit))
		if !result.allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", fmt.Sprintf("%.0f", result.retryAfter.Seconds()+0.5))
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "rate_limit_exceeded",
				Message: "Rate limit exceeded. Try again later.",
				Code:    http.StatusTooManyRequests,
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", formatFloat(result.remaining))
		c.Next()
	}
}

// allow checks if a request should be allowed, consuming a token if so.
func (rl *RateLimiter) allow(userID string) allowResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	refillRate := rl.limit / 3600.0 // tokens per second

	b, exists := rl.buckets[userID]
	if !exists {
		b = &bucket{tokens: rl.limit, lastRefill: now}
		rl.buckets[userID] = b
	}

	// Refill tokens based on elapsed time
	b.tokens += now.Sub(b.lastRefill).Seconds() * refillRate
	if b.tokens > rl.limit {
		b.tokens = rl.limit
	}
	b.lastRefill = now

	if b.tokens < 1.0 {
		wait := time.Duration((1.0 - b.tokens) / refillRate * float64(time.Second))
		return allowResult{allowed: false, retryAfter: wait}
	}

	b.tokens--
	return allowResult{allowed: true, remaining: b.tokens}
}

// sweep removes buckets that have been full and idle for over an hour.
func (rl *RateLimiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	now := rl.now()
	for id, b := range rl.buckets {
		if now.Sub(b.lastRefill) > time.Hour {
			delete(rl.buckets, id)
			removed++
		}
	}
	return removed
}

// cleanup periodically removes stale buckets to prevent memory leaks.
func (rl *RateLimiter) cleanup(every time.Duration) {
	// Go Pattern: time.Ticker sends values at regular intervals.
	// Always defer ticker.Stop() to release resources.
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// formatFloat converts a float to a string for headers.
func formatFloat(f float64) string {
	return fmt.Sprintf("%.0f", f)
}
