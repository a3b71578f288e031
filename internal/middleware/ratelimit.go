package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/apierror"
	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
	"github.com/gin-gonic/gin"
)

// RateLimiter provides fixed-window rate limiting per caller
type RateLimiter struct {
	requests map[string]*clientInfo
	mu       sync.Mutex
	rate     int
	window   time.Duration
	name     string
	stop     chan struct{}
	once     sync.Once
}

type clientInfo struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

// NewRateLimiter creates a limiter allowing rate requests per window.
// Call Stop to end its cleanup goroutine.
func NewRateLimiter(rate int, window time.Duration, name string) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string]*clientInfo),
		rate:     rate,
		window:   window,
		name:     name,
		stop:     make(chan struct{}),
	}

	go rl.cleanup()

	logger.Default().Debug("rate limiter initialized",
		logger.String("name", name),
		logger.Int("rate", rate),
		logger.Duration("window", window),
	)
	return rl
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup removes stale entries periodically
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, info := range rl.requests {
				if now.Sub(info.lastSeen) > rl.window*2 {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// isAllowed records a request for key and reports whether it fits the
// window, with the count so far
func (rl *RateLimiter) isAllowed(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	info, exists := rl.requests[key]
	if !exists || now.Sub(info.windowStart) >= rl.window {
		rl.requests[key] = &clientInfo{count: 1, windowStart: now, lastSeen: now}
		return true, 1
	}

	info.count++
	info.lastSeen = now
	return info.count <= rl.rate, info.count
}

// retryAfter returns whole seconds until key's window resets
func (rl *RateLimiter) retryAfter(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	info, ok := rl.requests[key]
	if !ok {
		return 0
	}
	remaining := rl.window - time.Since(info.windowStart)
	return max(1, int(remaining.Round(time.Second)/time.Second))
}

// RateLimit limits requests per authenticated user, falling back to the
// client IP before authentication has run
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("user_id")
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		allowed, count := limiter.isAllowed(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.rate))
		if !allowed {
			logger.Ctx(c.Request.Context()).Warn("rate limit exceeded",
				logger.String("limiter", limiter.name),
				logger.String("key", key),
				logger.Int("request_count", count),
				logger.Int("limit", limiter.rate),
			)
			c.Header("X-RateLimit-Remaining", "0")
			apierror.WriteProblem(c, apierror.NewRateLimitError(apierror.GetRequestID(c), limiter.retryAfter(key)))
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.rate-count))

		c.Next()
	}
}
