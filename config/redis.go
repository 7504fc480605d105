package config

import (
	"sync"
	"time"
)

var (
	redisOnce   sync.Once
	redisConfig *RedisConfig
)

// RedisConfig is shared by the task queue and the optional redis-backed
// segment cache. CacheTTL of zero keeps cached artifacts until restart.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

func GetRedisConfig() *RedisConfig {
	redisOnce.Do(func() {
		loadEnv()

		redisConfig = &RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: getEnvDuration("CACHE_TTL", 0),
		}
	})
	return redisConfig
}
