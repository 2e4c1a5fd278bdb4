package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// Default per-key limits.
const (
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 20

	// DefaultIdleTTL is how long an unused limiter is kept.
	DefaultIdleTTL = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides rate limiting functionality. Limiters unused for the
// idle TTL are dropped, so the key set stays bounded by recent traffic.
type RateLimiter struct {
	mu        sync.Mutex
	limits    map[string]*limiterEntry
	every     time.Duration
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter allowing rps requests per second
// per key with the given burst. Non-positive values fall back to the defaults.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	every := time.Duration(float64(time.Second) / rps)
	idleTTL := DefaultIdleTTL
	// A limiter idle this long has refilled its bucket, so dropping it
	// changes nothing for the key.
	if refill := every * time.Duration(burst); refill > idleTTL {
		idleTTL = refill
	}
	return &RateLimiter{
		limits:  make(map[string]*limiterEntry),
		every:   every,
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		rl.sweep(now)
	}

	if entry, ok := rl.limits[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Every(rl.every), rl.burst)
	rl.limits[key] = &limiterEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// sweep drops limiters idle for at least the idle TTL.
// Must be called with lock held.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, entry := range rl.limits {
		if now.Sub(entry.lastSeen) >= rl.idleTTL {
			delete(rl.limits, key)
		}
	}
	rl.lastSweep = now
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Wait waits for a request to be allowed.
// Returns error if the context is cancelled or rate limit exceeded.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.getLimiter(key).Wait(ctx)
}

// KeyFunc extracts the rate limiting key from a request.
type KeyFunc func(c echo.Context) string

// ClientKey keys requests by client IP. The X-User-ID header is not
// authenticated, so keying on it would let a client escape the limit by
// rotating the header.
func ClientKey(c echo.Context) string {
	return "ip:" + c.RealIP()
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(key KeyFunc) echo.MiddlewareFunc {
	if key == nil {
		key = ClientKey
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(key(c)) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"code":    "RATE_LIMITED",
					"message": "too many requests",
				})
			}
			return next(c)
		}
	}
}
