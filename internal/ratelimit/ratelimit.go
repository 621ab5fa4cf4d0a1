package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleTTL is how long an unused per-key limiter is kept
const idleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a token bucket per key (actor id or client address)
type RateLimiter struct {
	requestsPerMinute int
	burst             int
	enabled           bool

	limiters  map[string]*entry
	allowed   int64
	rejected  int64
	lastSweep time.Time
	now       func() time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a new rate limiter with the given limits
func NewRateLimiter(requestsPerMinute, burst int, enabled bool) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
		enabled:           enabled,
		limiters:          make(map[string]*entry),
		now:               time.Now,
	}
}

// AllowRequest reports whether key may make another request now
func (rl *RateLimiter) AllowRequest(key string) bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	e, ok := rl.limiters[key]
	if !ok {
		perSecond := rate.Limit(float64(rl.requestsPerMinute) / 60.0)
		e = &entry{limiter: rate.NewLimiter(perSecond, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now

	if e.limiter.AllowN(now, 1) {
		rl.allowed++
		return true
	}
	rl.rejected++
	return false
}

// retryAfter estimates how long key must wait for the next token
func (rl *RateLimiter) retryAfter() time.Duration {
	if rl.requestsPerMinute <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Minute) / float64(rl.requestsPerMinute))
}

// sweep drops limiters idle for longer than idleTTL; caller holds mu
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < time.Minute {
		return
	}
	rl.lastSweep = now
	for key, e := range rl.limiters {
		if now.Sub(e.lastSeen) > idleTTL {
			delete(rl.limiters, key)
		}
	}
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	return Stats{
		Enabled:        true,
		LimitPerMinute: rl.requestsPerMinute,
		Burst:          rl.burst,
		TrackedKeys:    len(rl.limiters),
		Allowed:        rl.allowed,
		Rejected:       rl.rejected,
	}
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled        bool  `json:"enabled"`
	LimitPerMinute int   `json:"limitPerMinute"`
	Burst          int   `json:"burst"`
	TrackedKeys    int   `json:"trackedKeys"`
	Allowed        int64 `json:"allowed"`
	Rejected       int64 `json:"rejected"`
}

// Reset clears all tracked limiters (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.limiters = make(map[string]*entry)
	rl.allowed = 0
	rl.rejected = 0
}

// Middleware rejects requests over the limit with 429. keyFunc picks the bucket;
// an empty key falls back to the client IP.
func (rl *RateLimiter) Middleware(keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ""
		if keyFunc != nil {
			key = keyFunc(c)
		}
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		if !rl.AllowRequest(key) {
			seconds := int(math.Ceil(rl.retryAfter().Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please slow down",
			})
			return
		}
		c.Next()
	}
}
