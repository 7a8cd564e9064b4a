package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type BatchController struct {
	BatchService *service.BatchService
}

func NewBatchController(batchService *service.BatchService) *BatchController {
	return &BatchController{BatchService: batchService}
}

// TraineesRequest swagger:model TraineesRequest
type TraineesRequest struct {
	UserIDs []uint `json:"userIds" binding:"required,min=1"`
}

// QuartersRequest swagger:model QuartersRequest
type QuartersRequest struct {
	Quarters []service.QuarterInput `json:"quarters" binding:"required,max=4,dive"`
}

// CurriculumRequest swagger:model CurriculumRequest
type CurriculumRequest struct {
	Description string `json:"description"`
}

// CurriculumCourseRequest swagger:model CurriculumCourseRequest
type CurriculumCourseRequest struct {
	CourseID uint `json:"courseId" binding:"required"`
}

// ListBatches godoc
// @Summary 批次列表
// @Tags 批次
// @Produce  json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Param search query string false "编号或地点"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/admin/batches [get]
func (c *BatchController) ListBatches(ctx *gin.Context) {
	page, size := util.Pagination(ctx)
	batches, total, err := c.BatchService.ListBatches(page, size, ctx.Query("search"))
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Page(ctx, batches, total, page, size)
}

// GetBatch godoc
// @Summary 批次详情
// @Tags 批次
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "批次ID"
// @Success 200 {object} util.Response{data=model.Batch}
// @Router /api/admin/batches/{id} [get]
func (c *BatchController) GetBatch(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	batch, err := c.BatchService.GetBatch(id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, batch)
}

// CreateBatch godoc
// @Summary 创建批次
// @Description 同时创建课程体系，名称由编号、地点和起止日期生成
// @Tags 批次
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body service.BatchRequest true "批次"
// @Success 201 {object} util.Response{data=model.Batch}
// @Router /api/admin/batches [post]
func (c *BatchController) CreateBatch(ctx *gin.Context) {
	var req service.BatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	batch, err := c.BatchService.CreateBatch(req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, batch)
}

// UpdateBatch godoc
// @Summary 更新批次
// @Tags 批次
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "批次ID"
// @Param body body service.BatchRequest true "批次"
// @Success 200 {object} util.Response{data=model.Batch}
// @Router /api/admin/batches/{id} [put]
func (c *BatchController) UpdateBatch(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.BatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	batch, err := c.BatchService.UpdateBatch(id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, batch)
}

// DeleteBatch godoc
// @Summary 删除批次
// @Tags 批次
// @Security ApiKeyAuth
// @Param id path int true "批次ID"
// @Success 200 {object} util.Response
// @Router /api/admin/batches/{id} [delete]
func (c *BatchController) DeleteBatch(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.BatchService.DeleteBatch(id); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// AddTrainees godoc
// @Summary 添加学员
// @Tags 批次
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "批次ID"
// @Param body body TraineesRequest true "学员ID"
// @Success 200 {object} util.Response{data=model.Batch}
// @Router /api/admin/batches/{id}/trainees [post]
func (c *BatchController) AddTrainees(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req TraineesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	batch, err := c.BatchService.AddTrainees(id, req.UserIDs)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, batch)
}

// RemoveTrainee godoc
// @Summary 移除学员
// @Tags 批次
// @Security ApiKeyAuth
// @Param id path int true "批次ID"
// @Param userId path int true "学员ID"
// @Success 200 {object} util.Response
// @Router /api/admin/batches/{id}/trainees/{userId} [delete]
func (c *BatchController) RemoveTrainee(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	userID, ok := paramID(ctx, "userId")
	if !ok {
		return
	}
	if err := c.BatchService.RemoveTrainee(id, userID); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// GetCurriculum godoc
// @Summary 批次课程体系
// @Tags 批次
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "批次ID"
// @Success 200 {object} util.Response{data=model.Curriculum}
// @Router /api/admin/batches/{id}/curriculum [get]
func (c *BatchController) GetCurriculum(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	cur, err := c.BatchService.GetCurriculum(id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, cur)
}

// UpdateCurriculum godoc
// @Summary 更新课程体系描述
// @Tags 批次
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "批次ID"
// @Param body body CurriculumRequest true "描述"
// @Success 200 {object} util.Response{data=model.Curriculum}
// @Router /api/admin/batches/{id}/curriculum [put]
func (c *BatchController) UpdateCurriculum(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req CurriculumRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	cur, err := c.BatchService.UpdateCurriculumDescription(id, req.Description)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, cur)
}

// ReplaceQuarters godoc
// @Summary 设置学季
// @Description 最多4个学季，必须在批次日期内且互不重叠
// @Tags 批次
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "批次ID"
// @Param body body QuartersRequest true "学季"
// @Success 200 {object} util.Response{data=model.Curriculum}
// @Router /api/admin/batches/{id}/quarters [put]
func (c *BatchController) ReplaceQuarters(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req QuartersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	cur, err := c.BatchService.ReplaceQuarters(id, req.Quarters)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, cur)
}

// AddCourse godoc
// @Summary 课程体系添加课程
// @Tags 批次
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "批次ID"
// @Param body body CurriculumCourseRequest true "课程"
// @Success 200 {object} util.Response{data=model.Curriculum}
// @Router /api/admin/batches/{id}/curriculum/courses [post]
func (c *BatchController) AddCourse(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req CurriculumCourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	cur, err := c.BatchService.AddCourse(id, req.CourseID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, cur)
}

// RemoveCourse godoc
// @Summary 课程体系移除课程
// @Tags 批次
// @Security ApiKeyAuth
// @Param id path int true "批次ID"
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/admin/batches/{id}/curriculum/courses/{courseId} [delete]
func (c *BatchController) RemoveCourse(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	courseID, ok := paramID(ctx, "courseId")
	if !ok {
		return
	}
	if err := c.BatchService.RemoveCourse(id, courseID); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// MyBatches godoc
// @Summary 我所在的批次
// @Tags 批次
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Batch}
// @Router /api/trainee/batches [get]
func (c *BatchController) MyBatches(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	batches, err := c.BatchService.MyBatches(claims.UserID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, batches)
}
