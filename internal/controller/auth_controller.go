package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// LoginRequest defines model for login
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest defines model for password change
// swagger:model ChangePasswordRequest
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

// Login godoc
// @Summary 用户登录
// @Description 邮箱密码登录，停用账号返回 401
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录信息"
// @Success 200 {object} util.Response{data=service.LoginResult} "登录成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "凭证无效或账号已停用"
// @Router /api/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AuthService.Login(req.Email, req.Password)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Profile godoc
// @Summary 当前用户信息
// @Tags 认证
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.User}
// @Failure 401 {object} util.Response
// @Router /api/profile [get]
func (c *AuthController) Profile(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	user, err := c.AuthService.Profile(claims.UserID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// ChangePassword godoc
// @Summary 修改密码
// @Description 校验当前密码，新密码不能与最近 3 次密码相同
// @Tags 认证
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ChangePasswordRequest true "密码"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "当前密码错误或新密码最近使用过"
// @Router /api/profile/password [put]
func (c *AuthController) ChangePassword(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.AuthService.ChangePassword(claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
