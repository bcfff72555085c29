package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	libredis "github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/logger"
)

// RateLimitMiddleware создаёт middleware для ограничения количества запросов.
// По умолчанию: 10 запросов в минуту с одного IP. При переданном redis-клиенте
// счётчики разделяются между экземплярами сервиса, иначе хранятся в памяти.
func RateLimitMiddleware(limit int64, period time.Duration, rdb *libredis.Client) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = 1 * time.Minute
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}

	var store limiter.Store
	if rdb != nil {
		redisStore, err := sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
			Prefix: "rate_limit",
		})
		if err != nil {
			if logger.Log != nil {
				logger.Log.WithField("error", err.Error()).Warn("rate limit: redis недоступен, используется память")
			}
			store = memory.NewStore()
		} else {
			store = redisStore
		}
	} else {
		store = memory.NewStore()
	}

	instance := limiter.New(store, rate)

	return func(c *gin.Context) {
		key := c.ClientIP()
		context, err := instance.Get(c, key)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", context.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", context.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", context.Reset))

		if context.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Message: "слишком много запросов, попробуйте позже",
				Error:   "RATE_LIMITED",
			})
			return
		}

		c.Next()
	}
}
