package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"prism/internal/models"
	"prism/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTimeout = 10 * time.Minute
	limiterSweepEvery  = time.Minute
)

// RateLimiter limits requests per client IP
type RateLimiter struct {
	perMinute int
	now       func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

// clientLimiter holds rate limiter info for a client
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per client,
// with a burst of twice that
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		now:       time.Now,
		clients:   make(map[string]*clientLimiter),
	}
}

// Middleware returns the gin handler. A limit of 0 disables it.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.perMinute <= 0 {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		if !rl.allow(clientIP) {
			rl.reject(c, clientIP)
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rl.perMinute))
		c.Next()
	}
}

// allow takes a token for key, dropping idle clients along the way
func (rl *RateLimiter) allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= limiterSweepEvery {
		rl.sweep(now)
		rl.lastSweep = now
	}

	client, ok := rl.clients[key]
	if !ok {
		client = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60.0), rl.perMinute*2),
		}
		rl.clients[key] = client
	}
	client.lastSeen = now
	return client.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) sweep(now time.Time) {
	removed := 0
	for key, client := range rl.clients {
		if now.Sub(client.lastSeen) > limiterIdleTimeout {
			delete(rl.clients, key)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("Cleaned up idle rate limiters",
			zap.Int("deleted_count", removed),
			zap.Int("remaining_count", len(rl.clients)))
	}
}

// clientCount reports how many clients are tracked
func (rl *RateLimiter) clientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) reject(c *gin.Context, clientIP string) {
	logger.WarnWithContext(c.Request.Context(), "Rate limit exceeded",
		zap.String("client_ip", clientIP),
		zap.String("path", c.Request.URL.Path),
		zap.Int("limit", rl.perMinute))

	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rl.perMinute))
	c.Header("X-RateLimit-Remaining", "0")
	c.Header("Retry-After", "60")

	c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
		Error:   "Rate limit exceeded",
		Message: fmt.Sprintf("Too many requests. Limit: %d requests per minute", rl.perMinute),
		Code:    http.StatusTooManyRequests,
	})
}
