package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leadvault/leadvault/internal/cache"
	"github.com/leadvault/leadvault/pkg/errors"
	"github.com/leadvault/leadvault/pkg/logger"
	"github.com/leadvault/leadvault/pkg/metrics"
	"github.com/leadvault/leadvault/pkg/response"
)

// RateLimitConfig describes one named fixed-window limiter. Limiters with
// different names count independently even for the same client.
type RateLimitConfig struct {
	Name        string
	MaxRequests int
	Window      time.Duration
	KeyFunc     func(c *gin.Context) string
}

// KeyByIP keys a limiter on the client network identity alone.
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByIPAndUser keys on client IP plus the authenticated user when present,
// so users behind a shared NAT do not exhaust each other's budget.
func KeyByIPAndUser(c *gin.Context) string {
	key := c.ClientIP()
	if userID := c.GetString(CtxUserIDKey); userID != "" {
		key += "|" + userID
	}
	return key
}

// RateLimit enforces a fixed-window request budget backed by the shared
// store. Every response carries the X-RateLimit headers; denials are 429 with
// Retry-After. A store failure fails open.
func RateLimit(store cache.Store, cfg RateLimitConfig) gin.HandlerFunc {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = KeyByIPAndUser
	}

	return func(c *gin.Context) {
		if cfg.MaxRequests <= 0 || cfg.Window <= 0 {
			c.Next()
			return
		}

		key := "ratelimit:" + cfg.Name + ":" + keyFunc(c)
		count, ttl, err := store.IncrementWithTTL(c.Request.Context(), key, cfg.Window)
		if err != nil {
			logger.WithModule("ratelimit").Warn("store unavailable, allowing request",
				zap.String("limiter", cfg.Name),
				zap.Error(err),
			)
			c.Next()
			return
		}

		remaining := int64(cfg.MaxRequests) - count
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

		if count > int64(cfg.MaxRequests) {
			metrics.RateLimitDenials.WithLabelValues(cfg.Name).Inc()
			response.Error(c, errors.NewRateLimited(ttl))
			c.Abort()
			return
		}

		c.Next()
	}
}

// The four limiters the API runs with.

func GeneralAPILimit(store cache.Store) gin.HandlerFunc {
	return RateLimit(store, RateLimitConfig{Name: "api", MaxRequests: 100, Window: 15 * time.Minute})
}

func MutationLimit(store cache.Store) gin.HandlerFunc {
	return RateLimit(store, RateLimitConfig{Name: "mutation", MaxRequests: 10, Window: time.Minute})
}

func ImportLimit(store cache.Store) gin.HandlerFunc {
	return RateLimit(store, RateLimitConfig{Name: "import", MaxRequests: 3, Window: time.Minute})
}

func AuthLimit(store cache.Store) gin.HandlerFunc {
	return RateLimit(store, RateLimitConfig{Name: "auth", MaxRequests: 5, Window: 15 * time.Minute, KeyFunc: KeyByIP})
}
