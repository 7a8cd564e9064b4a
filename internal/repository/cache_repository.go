package repository

import (
	"context"
	"encoding/json"
	"time"

	"lms_backend/pkg/database"

	"github.com/go-redis/redis/v8"
)

// CacheRepository JSON 缓存，key 自动加上 KeySpace 前缀
type CacheRepository struct {
	Redis *redis.Client
	Keys  database.KeySpace
}

func NewCacheRepository(rdb *redis.Client, keys database.KeySpace) *CacheRepository {
	return &CacheRepository{Redis: rdb, Keys: keys}
}

// GetJSON 命中时解码到 dest 并返回 true
func (r *CacheRepository) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := r.Redis.Get(ctx, r.Keys.Key(key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *CacheRepository) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Redis.Set(ctx, r.Keys.Key(key), data, ttl).Err()
}

func (r *CacheRepository) Ping(ctx context.Context) error {
	return r.Redis.Ping(ctx).Err()
}
