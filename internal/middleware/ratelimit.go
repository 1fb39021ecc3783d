package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/asjjun/naejango/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter is a counter in redis whose TTL restarts on every hit: a client over the
// limit stays blocked until it has been quiet for a whole window.
type Limiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

func NewLimiter(client redis.Cmdable, limit int64, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: limit, window: window}
}

// Allow counts one hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := "naejango:rl:" + key
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return incr.Val() <= l.limit, nil
}

// AllowFunc decides whether a hit for key may proceed.
type AllowFunc func(ctx context.Context, key string) (bool, error)

// RateLimit limits each authenticated user per route. It must run after
// AuthMiddleware. When the limiter itself fails the request is let through.
func RateLimit(allow AllowFunc, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetUserID(c).String() + ":" + c.FullPath()
		ok, err := allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			e := apperr.ErrRateLimited
			c.AbortWithStatusJSON(e.Status(), gin.H{"error": e.Code, "message": e.Message()})
			return
		}
		c.Next()
	}
}
