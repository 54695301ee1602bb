package surveyforge

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimiter is a fixed-window counter over redis. Redis outages fail
// open: a survey that cannot be voted on is worse than a brief window
// without throttling.
type RateLimiter struct {
	redis  *redis.Client
	scope  string
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, scope string, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		scope:  scope,
		limit:  limit,
		window: window,
	}
}

// Middleware rejects requests over the per-client limit with 429.
func (s *RateLimiter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := "ratelimit:" + s.scope + ":" + ctx.ClientIP()

		count, err := s.redis.Incr(ctx, key).Result()
		if err != nil {
			logrus.Warnf("rate limiter `%s`: %v", key, err)
			ctx.Next()

			return
		}

		if count == 1 {
			if err = s.redis.Expire(ctx, key, s.window).Err(); err != nil {
				logrus.Warnf("rate limiter expire `%s`: %v", key, err)
			}
		}

		if count > s.limit {
			rateLimitRejections.WithLabelValues(s.scope).Inc()
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please try again later",
			})

			return
		}

		ctx.Next()
	}
}
