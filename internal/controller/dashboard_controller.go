package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	DashboardService *service.DashboardService
}

func NewDashboardController(dashboardService *service.DashboardService) *DashboardController {
	return &DashboardController{DashboardService: dashboardService}
}

// AdminDashboard godoc
// @Summary 管理员仪表盘
// @Tags 仪表盘
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.AdminDashboard}
// @Router /api/admin/dashboard [get]
func (c *DashboardController) AdminDashboard(ctx *gin.Context) {
	data, err := c.DashboardService.Admin(ctx.Request.Context())
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, data)
}

// TrainerDashboard godoc
// @Summary 讲师仪表盘
// @Tags 仪表盘
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.TrainerDashboard}
// @Router /api/trainer/dashboard [get]
func (c *DashboardController) TrainerDashboard(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	data, err := c.DashboardService.Trainer(ctx.Request.Context(), claims.UserID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, data)
}

// TraineeDashboard godoc
// @Summary 学员仪表盘
// @Tags 仪表盘
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.TraineeDashboard}
// @Router /api/trainee/dashboard [get]
func (c *DashboardController) TraineeDashboard(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	data, err := c.DashboardService.Trainee(ctx.Request.Context(), claims.UserID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, data)
}
