package repository

import (
	"context"
	"encoding/json"
	"time"

	"lms_backend/pkg/database"

	"github.com/go-redis/redis/v8"
)

// DraftRepository 答题草稿（自动保存），按会话存放在 Redis
type DraftRepository struct {
	Redis *redis.Client
	Keys  database.KeySpace
}

func NewDraftRepository(rdb *redis.Client, keys database.KeySpace) *DraftRepository {
	return &DraftRepository{Redis: rdb, Keys: keys}
}

func (r *DraftRepository) key(sessionID string) string {
	return r.Keys.Key("quiz", "draft", sessionID)
}

func (r *DraftRepository) Save(ctx context.Context, sessionID string, answers map[uint]string, ttl time.Duration) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	return r.Redis.Set(ctx, r.key(sessionID), data, ttl).Err()
}

// Load 不存在时返回空 map
func (r *DraftRepository) Load(ctx context.Context, sessionID string) (map[uint]string, error) {
	answers := make(map[uint]string)
	val, err := r.Redis.Get(ctx, r.key(sessionID)).Result()
	if err == redis.Nil {
		return answers, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(val), &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (r *DraftRepository) Delete(ctx context.Context, sessionID string) error {
	return r.Redis.Del(ctx, r.key(sessionID)).Err()
}
