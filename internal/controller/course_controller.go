package controller

import (
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

// PublishRequest swagger:model PublishRequest
type PublishRequest struct {
	Published *bool `json:"published" binding:"required"`
}

// InstructorRequest swagger:model InstructorRequest
type InstructorRequest struct {
	UserID uint `json:"userId" binding:"required"`
}

// ListCourses godoc
// @Summary 课程列表
// @Description 学员只能看到已发布课程，管理员可按发布状态筛选
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Param published query bool false "发布状态（管理员）"
// @Param search query string false "标题"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	page, size := util.Pagination(ctx)
	filter := repository.CourseFilter{Search: ctx.Query("search")}

	if claims.IsAdmin() {
		if v := ctx.Query("published"); v != "" {
			published, err := strconv.ParseBool(v)
			if err != nil {
				util.BadRequest(ctx, "invalid published")
				return
			}
			filter.Published = &published
		}
	} else {
		published := true
		filter.Published = &published
	}

	courses, total, err := c.CourseService.ListCourses(page, size, filter)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Page(ctx, courses, total, page, size)
}

// TrainerCourses godoc
// @Summary 我讲授的课程
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/trainer/courses [get]
func (c *CourseController) TrainerCourses(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	page, size := util.Pagination(ctx)
	courses, total, err := c.CourseService.ListCourses(page, size, repository.CourseFilter{
		InstructorID: claims.UserID,
		Search:       ctx.Query("search"),
	})
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Page(ctx, courses, total, page, size)
}

// GetCourse godoc
// @Summary 课程详情（含模块和课时）
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 404 {object} util.Response
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	course, err := c.CourseService.GetCourse(id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	if !course.IsPublished && !claims.IsAdmin() && !isInstructor(course.Instructors, claims.UserID) {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, course)
}

// CreateCourse godoc
// @Summary 创建课程
// @Description 课程和讲师关联在同一事务中写入
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body service.CourseRequest true "课程"
// @Success 201 {object} util.Response{data=model.Course}
// @Router /api/trainer/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.CourseService.CreateCourse(service.ActorFromClaims(claims), req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// UpdateCourse godoc
// @Summary 更新课程
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body service.CourseRequest true "课程"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/trainer/courses/{id} [put]
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.CourseService.UpdateCourse(service.ActorFromClaims(claims), id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// DeleteCourse godoc
// @Summary 删除课程
// @Tags 课程
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/admin/courses/{id} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.DeleteCourse(ctx.Request.Context(), id); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// PublishCourse godoc
// @Summary 发布或下架课程
// @Tags 课程
// @Accept  json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body PublishRequest true "发布状态"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/trainer/courses/{id}/publish [put]
func (c *CourseController) PublishCourse(ctx *gin.Context) {
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
	course, err := c.CourseService.SetPublished(service.ActorFromClaims(claims), id, *req.Published)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// AssignInstructor godoc
// @Summary 指派讲师
// @Tags 课程
// @Accept  json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body InstructorRequest true "讲师"
// @Success 200 {object} util.Response
// @Router /api/admin/courses/{id}/instructors [post]
func (c *CourseController) AssignInstructor(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req InstructorRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.CourseService.AssignInstructor(id, req.UserID); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UnassignInstructor godoc
// @Summary 取消讲师
// @Tags 课程
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param userId path int true "讲师ID"
// @Success 200 {object} util.Response
// @Router /api/admin/courses/{id}/instructors/{userId} [delete]
func (c *CourseController) UnassignInstructor(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	userID, ok := paramID(ctx, "userId")
	if !ok {
		return
	}
	if err := c.CourseService.UnassignInstructor(id, userID); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadImage godoc
// @Summary 上传课程封面
// @Tags 课程
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param file formData file true "图片"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/trainer/courses/{id}/image [post]
func (c *CourseController) UploadImage(ctx *gin.Context) {
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
	course, err := c.CourseService.UploadImage(ctx.Request.Context(), service.ActorFromClaims(claims), id, file)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// ListModules godoc
// @Summary 课程模块列表
// @Tags 课程内容
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.Module}
// @Router /api/courses/{id}/modules [get]
func (c *CourseController) ListModules(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	modules, err := c.CourseService.ListModules(id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, modules)
}

// CreateModule godoc
// @Summary 创建模块
// @Tags 课程内容
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body service.ModuleRequest true "模块"
// @Success 201 {object} util.Response{data=model.Module}
// @Router /api/trainer/courses/{id}/modules [post]
func (c *CourseController) CreateModule(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.ModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	m, err := c.CourseService.CreateModule(service.ActorFromClaims(claims), id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, m)
}

// UpdateModule godoc
// @Summary 更新模块
// @Tags 课程内容
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Param body body service.ModuleRequest true "模块"
// @Success 200 {object} util.Response{data=model.Module}
// @Router /api/trainer/modules/{id} [put]
func (c *CourseController) UpdateModule(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.ModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	m, err := c.CourseService.UpdateModule(service.ActorFromClaims(claims), id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, m)
}

// DeleteModule godoc
// @Summary 删除模块
// @Tags 课程内容
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Success 200 {object} util.Response
// @Router /api/trainer/modules/{id} [delete]
func (c *CourseController) DeleteModule(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.DeleteModule(ctx.Request.Context(), service.ActorFromClaims(claims), id); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListLectures godoc
// @Summary 模块课时列表
// @Tags 课程内容
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Success 200 {object} util.Response{data=[]model.Lecture}
// @Router /api/modules/{id}/lectures [get]
func (c *CourseController) ListLectures(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	lectures, err := c.CourseService.ListLectures(id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, lectures)
}

// GetLecture godoc
// @Summary 课时详情
// @Tags 课程内容
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=model.Lecture}
// @Router /api/lectures/{id} [get]
func (c *CourseController) GetLecture(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	lecture, err := c.CourseService.GetLecture(id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, lecture)
}

// CreateLecture godoc
// @Summary 创建课时
// @Tags 课程内容
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Param body body service.LectureRequest true "课时"
// @Success 201 {object} util.Response{data=model.Lecture}
// @Router /api/trainer/modules/{id}/lectures [post]
func (c *CourseController) CreateLecture(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.LectureRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	l, err := c.CourseService.CreateLecture(service.ActorFromClaims(claims), id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, l)
}

// UpdateLecture godoc
// @Summary 更新课时
// @Tags 课程内容
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Param body body service.LectureRequest true "课时"
// @Success 200 {object} util.Response{data=model.Lecture}
// @Router /api/trainer/lectures/{id} [put]
func (c *CourseController) UpdateLecture(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.LectureRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	l, err := c.CourseService.UpdateLecture(service.ActorFromClaims(claims), id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, l)
}

// DeleteLecture godoc
// @Summary 删除课时
// @Tags 课程内容
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response
// @Router /api/trainer/lectures/{id} [delete]
func (c *CourseController) DeleteLecture(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.DeleteLecture(ctx.Request.Context(), service.ActorFromClaims(claims), id); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListResources godoc
// @Summary 课时资源列表
// @Tags 课程内容
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=[]model.Resource}
// @Router /api/lectures/{id}/resources [get]
func (c *CourseController) ListResources(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	resources, err := c.CourseService.ListResources(id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, resources)
}

// UploadResource godoc
// @Summary 上传课时资源
// @Tags 课程内容
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Param file formData file true "文件"
// @Param title formData string false "标题"
// @Success 201 {object} util.Response{data=model.Resource}
// @Router /api/trainer/lectures/{id}/resources [post]
func (c *CourseController) UploadResource(ctx *gin.Context) {
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
	res, err := c.CourseService.UploadResource(ctx.Request.Context(), service.ActorFromClaims(claims), id, ctx.PostForm("title"), file)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, res)
}

// DeleteResource godoc
// @Summary 删除资源
// @Description 同时删除存储中的文件
// @Tags 课程内容
// @Security ApiKeyAuth
// @Param id path int true "资源ID"
// @Success 200 {object} util.Response
// @Router /api/trainer/resources/{id} [delete]
func (c *CourseController) DeleteResource(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.DeleteResource(ctx.Request.Context(), service.ActorFromClaims(claims), id); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
