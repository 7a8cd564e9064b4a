package repository

import (
	"testing"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试独享一个内存库，单连接保证事务内外看到同一份数据
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.SetupJoinTables(db))
	require.NoError(t, database.Migrate(db, config.SeedConfig{}))
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	u := &model.User{Name: email, Email: email, IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func countRows(t *testing.T, db *gorm.DB, m interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Where(query, args...).Count(&n).Error)
	return n
}

var testNow = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
