package controller

import (
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxImportSize = 5 << 20

type UserController struct {
	UserService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{UserService: userService}
}

// SetActiveRequest swagger:model SetActiveRequest
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ListUsers godoc
// @Summary 用户列表
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Param role query string false "角色 admin|trainer|trainee"
// @Param search query string false "姓名或邮箱"
// @Param active query bool false "启用状态"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/admin/users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	page, size := util.Pagination(ctx)
	filter := repository.UserFilter{
		Role:   ctx.Query("role"),
		Search: ctx.Query("search"),
	}
	if v := ctx.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			util.BadRequest(ctx, "invalid active")
			return
		}
		filter.Active = &active
	}

	users, total, err := c.UserService.ListUsers(page, size, filter)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Page(ctx, users, total, page, size)
}

// GetUser godoc
// @Summary 用户详情
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} util.Response{data=model.User}
// @Failure 404 {object} util.Response
// @Router /api/admin/users/{id} [get]
func (c *UserController) GetUser(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	user, err := c.UserService.GetUser(id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// CreateUser godoc
// @Summary 创建用户
// @Description 未提供密码时生成临时密码并发送邮件
// @Tags 用户管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body service.CreateUserInput true "用户信息"
// @Success 201 {object} util.Response{data=model.User}
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Router /api/admin/users [post]
func (c *UserController) CreateUser(ctx *gin.Context) {
	var req service.CreateUserInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user, err := c.UserService.CreateUser(req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, user)
}

// UpdateUser godoc
// @Summary 更新用户
// @Tags 用户管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Param body body service.UpdateUserInput true "用户信息"
// @Success 200 {object} util.Response{data=model.User}
// @Router /api/admin/users/{id} [put]
func (c *UserController) UpdateUser(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.UpdateUserInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user, err := c.UserService.UpdateUser(id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// DeleteUser godoc
// @Summary 删除用户
// @Tags 用户管理
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} util.Response
// @Router /api/admin/users/{id} [delete]
func (c *UserController) DeleteUser(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	if claims.UserID == id {
		util.BadRequest(ctx, "cannot delete yourself")
		return
	}
	if err := c.UserService.DeleteUser(id); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// SetActive godoc
// @Summary 启用或停用账号
// @Tags 用户管理
// @Accept  json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Param body body SetActiveRequest true "状态"
// @Success 200 {object} util.Response
// @Router /api/admin/users/{id}/active [put]
func (c *UserController) SetActive(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.UserService.SetActive(id, *req.Active); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id, "active": *req.Active})
}

// ResetPassword godoc
// @Summary 重置密码
// @Description 生成临时密码并发送邮件
// @Tags 用户管理
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} util.Response
// @Router /api/admin/users/{id}/reset-password [post]
func (c *UserController) ResetPassword(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.UserService.ResetPassword(id); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ImportUsers godoc
// @Summary CSV 批量导入用户
// @Description 表头 name,email,role[,password]，逐行创建并返回每行结果
// @Tags 用户管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param file formData file true "CSV 文件"
// @Success 200 {object} util.Response{data=service.ImportResult}
// @Failure 400 {object} util.Response
// @Router /api/admin/users/import [post]
func (c *UserController) ImportUsers(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	if file.Size > maxImportSize {
		util.BadRequest(ctx, "csv file too large")
		return
	}
	src, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer src.Close()

	result, err := c.UserService.ImportCSV(src)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
