package database

import (
	"testing"

	"lms_backend/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestKeySpace_Key(t *testing.T) {
	keys := KeySpace("lms:")
	assert.Equal(t, "lms:quiz:draft:s-1", keys.Key("quiz", "draft", "s-1"))
	assert.Equal(t, "lms:dashboard:trainer:3", keys.Key("dashboard:trainer:3"))
	assert.Equal(t, "quiz:draft:s-1", KeySpace("").Key("quiz", "draft", "s-1"))
}

func TestRedisOptions(t *testing.T) {
	opts := redisOptions(&config.RedisConfig{Host: "cache", Port: 6380, DB: 2, PoolSize: 20, MinIdleConns: 4})
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 4, opts.MinIdleConns)

	opts = redisOptions(&config.RedisConfig{Host: "cache", Port: 6379, PoolSize: 0, MinIdleConns: 80})
	assert.Equal(t, 50, opts.PoolSize)
	assert.Equal(t, 5, opts.MinIdleConns)
}
