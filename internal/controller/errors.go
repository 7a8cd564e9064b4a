package controller

import (
	"context"
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{util.ErrUnauthorized, http.StatusUnauthorized},
	{util.ErrInvalidCredentials, http.StatusUnauthorized},
	{util.ErrAccountDisabled, http.StatusUnauthorized},
	{util.ErrPermissionDenied, http.StatusForbidden},
	{util.ErrNotInstructor, http.StatusForbidden},
	{util.ErrAssessmentClosed, http.StatusForbidden},
	{util.ErrNotFound, http.StatusNotFound},
	{util.ErrUserNotFound, http.StatusNotFound},
	{util.ErrSessionNotFound, http.StatusNotFound},
	{util.ErrEmailRegistered, http.StatusConflict},
	{util.ErrAlreadySubmitted, http.StatusConflict},
	{util.ErrRecordingExists, http.StatusConflict},
	{util.ErrSessionClosed, http.StatusConflict},
	{util.ErrInvalidTransition, http.StatusConflict},
	{util.ErrAttemptsExhausted, http.StatusConflict},
	{util.ErrValidation, http.StatusBadRequest},
	{util.ErrInvalidDateRange, http.StatusBadRequest},
	{util.ErrQuarterLimit, http.StatusBadRequest},
	{util.ErrInvalidQuarter, http.StatusBadRequest},
	{util.ErrInvalidFileType, http.StatusBadRequest},
	{util.ErrInvalidCSV, http.StatusBadRequest},
	{util.ErrInvalidQuestion, http.StatusBadRequest},
	{util.ErrInvalidRole, http.StatusBadRequest},
	{util.ErrPasswordReused, http.StatusBadRequest},
	{util.ErrWrongPassword, http.StatusBadRequest},
	{util.ErrEmptyPDF, http.StatusBadRequest},
	{util.ErrAIResponse, http.StatusBadGateway},
	{util.ErrAINotConfigured, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// StatusOf 业务错误对应的 HTTP 状态码，未知错误返回 500
func StatusOf(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// handleError 业务错误原样返回信息，其余错误记录日志并返回 500
func handleError(ctx *gin.Context, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		util.LogInternalError(ctx, err)
		return
	}
	util.Error(ctx, status, err.Error())
}

func currentActor(ctx *gin.Context) (*util.Claims, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return claims, true
}

func paramID(ctx *gin.Context, name string) (uint, bool) {
	id, ok := util.ParamUint(ctx, name)
	if !ok {
		util.BadRequest(ctx, "invalid "+name)
	}
	return id, ok
}

func isInstructor(instructors []model.User, userID uint) bool {
	for _, u := range instructors {
		if u.ID == userID {
			return true
		}
	}
	return false
}
