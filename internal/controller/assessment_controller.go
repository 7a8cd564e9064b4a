package controller

import (
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	AssessmentService *service.AssessmentService
	GenerationService *service.QuizGenerationService
}

func NewAssessmentController(assessmentService *service.AssessmentService, generationService *service.QuizGenerationService) *AssessmentController {
	return &AssessmentController{
		AssessmentService: assessmentService,
		GenerationService: generationService,
	}
}

// ReplaceQuestionsRequest swagger:model ReplaceQuestionsRequest
type ReplaceQuestionsRequest struct {
	Questions []service.QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// ListAssessments godoc
// @Summary 测验列表
// @Tags 测验管理
// @Produce  json
// @Security ApiKeyAuth
// @Param lectureId query int false "课时ID"
// @Param courseId query int false "课程ID"
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/trainer/assessments [get]
func (c *AssessmentController) ListAssessments(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	page, size := util.Pagination(ctx)

	var filter repository.AssessmentFilter
	if v := ctx.Query("lectureId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			util.BadRequest(ctx, "invalid lectureId")
			return
		}
		lectureID := uint(id)
		filter.LectureID = &lectureID
	}
	if v := ctx.Query("courseId"); v != "" {
		filter.CourseID = util.MustParseUint(v)
	}
	if !claims.IsAdmin() && filter.LectureID == nil && filter.CourseID == 0 {
		filter.CreatedBy = claims.UserID
	}

	list, total, err := c.AssessmentService.ListAssessments(page, size, filter)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Page(ctx, list, total, page, size)
}

// ListPublished godoc
// @Summary 课时下已发布的测验
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/lectures/{id}/assessments [get]
func (c *AssessmentController) ListPublished(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	page, size := util.Pagination(ctx)
	published := true
	list, total, err := c.AssessmentService.ListAssessments(page, size, repository.AssessmentFilter{
		LectureID: &id,
		Published: &published,
	})
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Page(ctx, list, total, page, size)
}

// GetAssessment godoc
// @Summary 测验详情（含答案）
// @Tags 测验管理
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Assessment}
// @Router /api/trainer/assessments/{id} [get]
func (c *AssessmentController) GetAssessment(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if _, err := c.AssessmentService.Editable(service.ActorFromClaims(claims), id); err != nil {
		handleError(ctx, err)
		return
	}
	a, err := c.AssessmentService.GetAssessment(id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// CreateAssessment godoc
// @Summary 创建测验
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body service.AssessmentRequest true "测验"
// @Success 201 {object} util.Response{data=model.Assessment}
// @Router /api/trainer/assessments [post]
func (c *AssessmentController) CreateAssessment(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.AssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	a, err := c.AssessmentService.CreateAssessment(service.ActorFromClaims(claims), req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, a)
}

// UpdateAssessment godoc
// @Summary 更新测验
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body service.AssessmentRequest true "测验"
// @Success 200 {object} util.Response{data=model.Assessment}
// @Router /api/trainer/assessments/{id} [put]
func (c *AssessmentController) UpdateAssessment(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.AssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	a, err := c.AssessmentService.UpdateAssessment(service.ActorFromClaims(claims), id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// DeleteAssessment godoc
// @Summary 删除测验
// @Tags 测验管理
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/trainer/assessments/{id} [delete]
func (c *AssessmentController) DeleteAssessment(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.AssessmentService.DeleteAssessment(service.ActorFromClaims(claims), id); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// PublishAssessment godoc
// @Summary 发布或下架测验
// @Description 没有题目的测验不能发布
// @Tags 测验管理
// @Accept  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body PublishRequest true "发布状态"
// @Success 200 {object} util.Response{data=model.Assessment}
// @Router /api/trainer/assessments/{id}/publish [put]
func (c *AssessmentController) PublishAssessment(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	a, err := c.AssessmentService.SetPublished(service.ActorFromClaims(claims), id, *req.Published)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// CreateQuestion godoc
// @Summary 添加题目
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body service.QuestionInput true "题目"
// @Success 201 {object} util.Response{data=model.AssessmentQuestion}
// @Router /api/trainer/assessments/{id}/questions [post]
func (c *AssessmentController) CreateQuestion(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.QuestionInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q, err := c.AssessmentService.CreateQuestion(service.ActorFromClaims(claims), id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// ReplaceQuestions godoc
// @Summary 整体替换题目
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body ReplaceQuestionsRequest true "题目列表"
// @Success 200 {object} util.Response{data=[]model.AssessmentQuestion}
// @Router /api/trainer/assessments/{id}/questions [put]
func (c *AssessmentController) ReplaceQuestions(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req ReplaceQuestionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	questions, err := c.AssessmentService.ReplaceQuestions(service.ActorFromClaims(claims), id, req.Questions)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param body body service.QuestionInput true "题目"
// @Success 200 {object} util.Response{data=model.AssessmentQuestion}
// @Router /api/trainer/questions/{id} [put]
func (c *AssessmentController) UpdateQuestion(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.QuestionInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q, err := c.AssessmentService.UpdateQuestion(service.ActorFromClaims(claims), id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 测验管理
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/trainer/questions/{id} [delete]
func (c *AssessmentController) DeleteQuestion(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.AssessmentService.DeleteQuestion(service.ActorFromClaims(claims), id); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// GenerateQuestions godoc
// @Summary 根据PDF智能出题
// @Description 提取PDF文本后调用大模型生成题目；preview=true 时只返回结果不保存
// @Tags 测验管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param file formData file true "PDF文件"
// @Param count formData int false "题目数量"
// @Param difficulty formData string false "难度 easy/medium/hard"
// @Param preview formData bool false "仅预览"
// @Success 200 {object} util.Response{data=service.GenerateResult}
// @Failure 502 {object} util.Response
// @Router /api/trainer/assessments/{id}/generate [post]
func (c *AssessmentController) GenerateQuestions(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	opts := service.GenerateOptions{Difficulty: ctx.PostForm("difficulty")}
	if v := ctx.PostForm("count"); v != "" {
		if opts.Count, err = strconv.Atoi(v); err != nil {
			util.BadRequest(ctx, "invalid count")
			return
		}
	}
	if v := ctx.PostForm("preview"); v != "" {
		if opts.Preview, err = strconv.ParseBool(v); err != nil {
			util.BadRequest(ctx, "invalid preview")
			return
		}
	}

	res, err := c.GenerationService.GenerateFromPDF(ctx.Request.Context(), service.ActorFromClaims(claims), id, file, opts)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// ListGrades godoc
// @Summary 测验成绩列表
// @Tags 测验管理
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/trainer/assessments/{id}/grades [get]
func (c *AssessmentController) ListGrades(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	page, size := util.Pagination(ctx)
	grades, total, err := c.AssessmentService.ListGrades(service.ActorFromClaims(claims), id, page, size)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Page(ctx, grades, total, page, size)
}

// OverrideGrade godoc
// @Summary 人工调整成绩
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "成绩ID"
// @Param body body service.GradeOverrideRequest true "成绩"
// @Success 200 {object} util.Response{data=model.Grade}
// @Router /api/trainer/grades/{id} [put]
func (c *AssessmentController) OverrideGrade(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.GradeOverrideRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	g, err := c.AssessmentService.OverrideGrade(service.ActorFromClaims(claims), id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, g)
}

// ListSessions godoc
// @Summary 监考会话列表
// @Tags 测验管理
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/trainer/assessments/{id}/sessions [get]
func (c *AssessmentController) ListSessions(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	page, size := util.Pagination(ctx)
	sessions, total, err := c.AssessmentService.ListSessions(service.ActorFromClaims(claims), id, page, size)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Page(ctx, sessions, total, page, size)
}
