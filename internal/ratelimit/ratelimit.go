// Package ratelimit is a Redis-backed fixed-window limiter keyed per user.
// It is best-effort: when Redis misbehaves the request is allowed through,
// since dropping traffic because the limiter is down would be worse than
// briefly not limiting it.
package ratelimit

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/eventdesk/checkin-service/internal/auth"
)

// PerUser limits each authenticated user to limit requests per window for the
// given scope. Must run after the auth middleware.
func PerUser(rdb *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		if userID == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		bucket := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%s:%d", scope, userID, bucket)

		pipe := rdb.Pipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("ratelimit: redis error, failing open: %v", err)
			c.Next()
			return
		}

		if incr.Val() > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
