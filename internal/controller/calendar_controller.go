package controller

import (
	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultCalendarWindow = 31 * 24 * time.Hour

type CalendarController struct {
	CalendarService *service.CalendarService
}

func NewCalendarController(calendarService *service.CalendarService) *CalendarController {
	return &CalendarController{CalendarService: calendarService}
}

// ListEvents godoc
// @Summary 日历事件
// @Description 返回与时间窗口重叠的事件；学员只能看到所在批次和全局事件。默认从今天起31天
// @Tags 日历
// @Produce  json
// @Security ApiKeyAuth
// @Param from query string false "开始（RFC3339 或 2006-01-02）"
// @Param to query string false "结束（RFC3339 或 2006-01-02）"
// @Success 200 {object} util.Response{data=[]model.CalendarEvent}
// @Router /api/calendar [get]
func (c *CalendarController) ListEvents(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}

	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if v := ctx.Query("from"); v != "" {
		t, ok := parseCalendarTime(v, false)
		if !ok {
			util.BadRequest(ctx, "invalid from")
			return
		}
		from = t
	}
	to := from.Add(defaultCalendarWindow)
	if v := ctx.Query("to"); v != "" {
		t, ok := parseCalendarTime(v, true)
		if !ok {
			util.BadRequest(ctx, "invalid to")
			return
		}
		to = t
	}

	events, err := c.CalendarService.ListEvents(claims.UserID, traineeOnly(claims), from, to)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, events)
}

// GetEvent godoc
// @Summary 日历事件详情
// @Tags 日历
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "事件ID"
// @Success 200 {object} util.Response{data=model.CalendarEvent}
// @Router /api/calendar/{id} [get]
func (c *CalendarController) GetEvent(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	e, err := c.CalendarService.GetEvent(claims.UserID, traineeOnly(claims), id)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, e)
}

// CreateEvent godoc
// @Summary 创建日历事件
// @Tags 日历
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param body body service.CalendarEventRequest true "事件"
// @Success 201 {object} util.Response{data=model.CalendarEvent}
// @Router /api/trainer/calendar [post]
func (c *CalendarController) CreateEvent(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.CalendarEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	e, err := c.CalendarService.CreateEvent(service.ActorFromClaims(claims), req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, e)
}

// UpdateEvent godoc
// @Summary 更新日历事件
// @Tags 日历
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "事件ID"
// @Param body body service.CalendarEventRequest true "事件"
// @Success 200 {object} util.Response{data=model.CalendarEvent}
// @Router /api/trainer/calendar/{id} [put]
func (c *CalendarController) UpdateEvent(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.CalendarEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	e, err := c.CalendarService.UpdateEvent(service.ActorFromClaims(claims), id, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, e)
}

// DeleteEvent godoc
// @Summary 删除日历事件
// @Tags 日历
// @Security ApiKeyAuth
// @Param id path int true "事件ID"
// @Success 200 {object} util.Response
// @Router /api/trainer/calendar/{id} [delete]
func (c *CalendarController) DeleteEvent(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.CalendarService.DeleteEvent(service.ActorFromClaims(claims), id); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// parseCalendarTime 接受 RFC3339 或日期；日期作为结束时间时取当天最后一刻
func parseCalendarTime(v string, endOfDay bool) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}

// traineeOnly 同时拥有讲师或管理员角色的用户可以看到全部事件
func traineeOnly(claims *util.Claims) bool {
	return !claims.IsAdmin() && !claims.HasRole(model.Trainer)
}
