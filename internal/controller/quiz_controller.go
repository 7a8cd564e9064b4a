package controller

import (
	"errors"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService       *service.QuizService
	AssessmentService *service.AssessmentService
	Hub               *service.ProctorHub
}

func NewQuizController(quizService *service.QuizService, assessmentService *service.AssessmentService, hub *service.ProctorHub) *QuizController {
	return &QuizController{
		QuizService:       quizService,
		AssessmentService: assessmentService,
		Hub:               hub,
	}
}

// AnswersRequest swagger:model AnswersRequest
type AnswersRequest struct {
	// 题目ID -> 答案，多选题为 JSON 数组字符串，如 ["A","C"]（兼容逗号分隔）
	Answers map[uint]string `json:"answers"`
}

// SubmitRequest swagger:model SubmitRequest
type SubmitRequest struct {
	Answers map[uint]string `json:"answers"`
	// manual 或 timer
	Trigger string `json:"trigger"`
}

// ViolationRequest swagger:model ViolationRequest
type ViolationRequest struct {
	// tab_switch 或 screen_share_ended
	Type string `json:"type" binding:"required"`
}

// GetQuiz godoc
// @Summary 获取测验题目（不含答案）
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=service.QuizView}
// @Router /api/trainee/assessments/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	view, err := c.QuizService.GetQuiz(claims.UserID, id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// StartSession godoc
// @Summary 开始作答
// @Description 创建监考会话；仍在作答期内的旧会话原样返回（200），已超时的旧会话自动交卷
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=service.StartResult}
// @Success 201 {object} util.Response{data=service.StartResult}
// @Failure 409 {object} util.Response
// @Router /api/trainee/assessments/{id}/sessions [post]
func (c *QuizController) StartSession(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	res, err := c.QuizService.StartSession(ctx.Request.Context(), claims.UserID, id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	if res.Resumed {
		util.Success(ctx, res)
		return
	}
	util.Created(ctx, res)
}

// StartRecording godoc
// @Summary 开始录屏
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response{data=model.AssessmentScreenSession}
// @Router /api/trainee/sessions/{sessionId}/recording/start [post]
func (c *QuizController) StartRecording(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	session, err := c.QuizService.StartRecording(claims.UserID, ctx.Param("sessionId"))
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// SaveDraft godoc
// @Summary 自动保存答案
// @Tags 测验
// @Accept  json
// @Security ApiKeyAuth
// @Param sessionId path string true "会话ID"
// @Param body body AnswersRequest true "答案"
// @Success 200 {object} util.Response
// @Router /api/trainee/sessions/{sessionId}/draft [put]
func (c *QuizController) SaveDraft(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req AnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.QuizService.SaveDraft(ctx.Request.Context(), claims.UserID, ctx.Param("sessionId"), req.Answers); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ReportViolation godoc
// @Summary 上报违规
// @Description 结束共享屏幕立即交卷；切屏次数达到上限时交卷
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param sessionId path string true "会话ID"
// @Param body body ViolationRequest true "违规类型"
// @Success 200 {object} util.Response{data=service.ViolationResult}
// @Router /api/trainee/sessions/{sessionId}/violations [post]
func (c *QuizController) ReportViolation(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req ViolationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	res, err := c.QuizService.ReportViolation(ctx.Request.Context(), claims.UserID, ctx.Param("sessionId"), req.Type)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// Submit godoc
// @Summary 交卷
// @Description 每个会话只会评分一次；重复提交返回 409 和已保存的成绩
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param sessionId path string true "会话ID"
// @Param body body SubmitRequest true "答案"
// @Success 200 {object} util.Response{data=service.SubmitResult}
// @Failure 409 {object} util.Response{data=service.SubmitResult}
// @Router /api/trainee/sessions/{sessionId}/submit [post]
func (c *QuizController) Submit(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	res, err := c.QuizService.Submit(ctx.Request.Context(), claims.UserID, ctx.Param("sessionId"), req.Answers, req.Trigger)
	if errors.Is(err, util.ErrAlreadySubmitted) && res != nil {
		util.ErrorWithData(ctx, http.StatusConflict, err.Error(), res)
		return
	}
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// UploadRecording godoc
// @Summary 上传录屏
// @Tags 测验
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param sessionId path string true "会话ID"
// @Param file formData file true "录屏文件"
// @Success 200 {object} util.Response{data=model.AssessmentScreenSession}
// @Failure 409 {object} util.Response
// @Router /api/trainee/sessions/{sessionId}/recording [post]
func (c *QuizController) UploadRecording(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	session, err := c.QuizService.UploadRecording(ctx.Request.Context(), claims.UserID, ctx.Param("sessionId"), file)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// MyGrades godoc
// @Summary 我的成绩
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Grade}
// @Router /api/trainee/grades [get]
func (c *QuizController) MyGrades(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	grades, err := c.AssessmentService.MyGrades(claims.UserID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, grades)
}

// MyResponses godoc
// @Summary 我的作答记录
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=[]model.AssessmentResponse}
// @Router /api/trainee/assessments/{id}/responses [get]
func (c *QuizController) MyResponses(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	responses, err := c.AssessmentService.MyResponses(claims.UserID, id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, responses)
}

// Monitor godoc
// @Summary 监考实时事件（WebSocket）
// @Description 讲师订阅考生的开始、违规、交卷事件；assessment_id 为空时接收全部
// @Tags 测验管理
// @Security ApiKeyAuth
// @Param token query string true "JWT"
// @Param assessment_id query int false "测验ID"
// @Router /api/trainer/proctor/ws [get]
func (c *QuizController) Monitor(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	var assessmentID uint
	if v := ctx.Query("assessment_id"); v != "" {
		assessmentID = util.MustParseUint(v)
		if _, err := c.AssessmentService.Editable(service.ActorFromClaims(claims), assessmentID); err != nil {
			handleError(ctx, err)
			return
		}
	} else if !claims.IsAdmin() {
		util.BadRequest(ctx, "assessment_id is required")
		return
	}
	c.Hub.ServeWs(ctx.Writer, ctx.Request, claims.UserID, assessmentID)
}
