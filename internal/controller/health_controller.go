package controller

import (
	"context"
	"lms_backend/internal/repository"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Cache *repository.CacheRepository
}

func NewHealthController(db *gorm.DB, cache *repository.CacheRepository) *HealthController {
	return &HealthController{DB: db, Cache: cache}
}

// Health godoc
// @Summary 健康检查
// @Description 检查数据库和 Redis 连接
// @Tags 系统
// @Produce  json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (c *HealthController) Health(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "database": "ok", "redis": "ok"}
	code := http.StatusOK

	sqlDB, err := c.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(checkCtx)
	}
	if err != nil {
		status["database"] = err.Error()
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	if err := c.Cache.Ping(checkCtx); err != nil {
		status["redis"] = err.Error()
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, status)
}
