package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Snagnar/facto.github.io/internal/metrics"
)

// LimiterStore counts requests per client key over a sliding window.
// Allow reports whether the request may proceed and, when it may not,
// how long until the window resets.
type LimiterStore interface {
	Allow(c *gin.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimiter returns a middleware that gates requests per client IP.
// Exceeding the window yields 429 with a retry-after hint, a distinct
// rejection, never a compile error. Store failures fail open: a broken
// limiter backend must not take down compilation.
func RateLimiter(store LimiterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := store.Allow(c, c.ClientIP())
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			metrics.RateLimitedTotal.Inc()
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please wait before trying again.",
				"retry_after": seconds,
			})
			return
		}
		c.Next()
	}
}

// windowEntry tracks request counts per time window.
type windowEntry struct {
	count   int
	started time.Time
}

// MemoryLimiter is the in-process sliding window store.
type MemoryLimiter struct {
	mu          sync.Mutex
	clients     map[string]*windowEntry
	maxRequests int
	window      time.Duration
	lastSweep   time.Time
}

var _ LimiterStore = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates an in-memory limiter allowing maxRequests per
// window per client IP.
func NewMemoryLimiter(maxRequests int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		clients:     make(map[string]*windowEntry),
		maxRequests: maxRequests,
		window:      window,
		lastSweep:   time.Now(),
	}
}

// Allow implements LimiterStore.
func (m *MemoryLimiter) Allow(_ *gin.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.sweepLocked(now)

	entry, exists := m.clients[key]
	if !exists || now.Sub(entry.started) > m.window {
		m.clients[key] = &windowEntry{count: 1, started: now}
		return true, 0, nil
	}

	if entry.count >= m.maxRequests {
		return false, m.window - now.Sub(entry.started), nil
	}

	entry.count++
	return true, 0, nil
}

// sweepLocked drops stale windows so one-off clients do not accumulate.
func (m *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < 5*m.window {
		return
	}
	m.lastSweep = now
	for key, entry := range m.clients {
		if now.Sub(entry.started) > 2*m.window {
			delete(m.clients, key)
		}
	}
}
