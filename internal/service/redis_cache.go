package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/laburoapp/laburo-backend/internal/logger"
)

// RedisReportCache хранит сериализованные отчёты в Redis и переживает
// рестарты сервера. Ошибки Redis не фатальны: операция продолжается как
// при промахе кэша.
type RedisReportCache struct {
	rdb *redis.Client
}

func NewRedisReportCache(rdb *redis.Client) *RedisReportCache {
	return &RedisReportCache{rdb: rdb}
}

func (c *RedisReportCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logRedisError("get", key, err)
		}
		return nil, false
	}
	return data, true
}

func (c *RedisReportCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		logRedisError("set", key, err)
	}
}

func (c *RedisReportCache) InvalidateByPrefix(ctx context.Context, prefix string) {
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logRedisError("scan", prefix, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		logRedisError("del", prefix, err)
	}
}

func logRedisError(op, key string, err error) {
	if logger.Log == nil {
		return
	}
	logger.Log.WithFields(logrus.Fields{
		"op":    op,
		"key":   key,
		"error": err.Error(),
	}).Warn("redis cache: операция не удалась")
}
