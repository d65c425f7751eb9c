package common

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"

	"github.com/llmgateway/llmgateway/common/config"
	"github.com/llmgateway/llmgateway/common/logger"
)

var RDB redis.Cmdable

var redisEnabled atomic.Bool

func IsRedisEnabled() bool {
	return redisEnabled.Load()
}

// IsRedisNil reports whether the error is the redis "no data" sentinel.
func IsRedisNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// InitRedisClient connects to Redis when REDIS_CONN_STRING is set. Without
// Redis the gateway falls back to in-process caches and the in-process log
// queue.
func InitRedisClient() (err error) {
	if config.RedisConnString == "" {
		redisEnabled.Store(false)
		logger.Logger.Info("REDIS_CONN_STRING not set, Redis is not enabled")
		return nil
	}
	opt, err := redis.ParseURL(config.RedisConnString)
	if err != nil {
		return errors.Wrap(err, "failed to parse Redis connection string")
	}
	RDB = redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err = RDB.Ping(ctx).Result(); err != nil {
		return errors.Wrap(err, "Redis ping test failed")
	}
	redisEnabled.Store(true)
	logger.Logger.Info("Redis is enabled")
	return nil
}

func RedisSet(key string, value string, expiration time.Duration) error {
	if RDB == nil {
		return errors.New("redis not initialized")
	}
	if err := RDB.Set(context.Background(), key, value, expiration).Err(); err != nil {
		return errors.Wrapf(err, "failed to set redis key: %s", key)
	}
	return nil
}

func RedisGet(key string) (string, error) {
	if RDB == nil {
		return "", errors.New("redis not initialized")
	}
	val, err := RDB.Get(context.Background(), key).Result()
	if err != nil {
		return "", errors.Wrapf(err, "failed to get redis key: %s", key)
	}
	return val, nil
}

func RedisDel(key string) error {
	if RDB == nil {
		return errors.New("redis not initialized")
	}
	if err := RDB.Del(context.Background(), key).Err(); err != nil {
		logger.Logger.Warn("failed to delete redis key", zap.String("key", key), zap.Error(err))
		return errors.Wrapf(err, "failed to delete redis key: %s", key)
	}
	return nil
}
