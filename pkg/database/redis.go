package database

import (
	"context"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/pkg/logger"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const redisPingTimeout = 5 * time.Second

// KeySpace 所有 Redis 键的统一前缀，多个环境可共用一个实例
type KeySpace string

// Key 拼接前缀与各段，如 KeySpace("lms:").Key("quiz", "draft", id)
func (k KeySpace) Key(parts ...string) string {
	return string(k) + strings.Join(parts, ":")
}

func redisOptions(cfg *config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 50
	}
	if opts.MinIdleConns < 0 || opts.MinIdleConns > opts.PoolSize {
		opts.MinIdleConns = 5
	}
	return opts
}

func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	opts := redisOptions(cfg)
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	logger.Log.Info("Redis connection established",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.String("keyPrefix", cfg.KeyPrefix),
	)
	return rdb, nil
}
