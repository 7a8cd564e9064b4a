package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{util.ErrInvalidCredentials, http.StatusUnauthorized},
		{util.ErrAccountDisabled, http.StatusUnauthorized},
		{util.ErrNotInstructor, http.StatusForbidden},
		{util.ErrSessionNotFound, http.StatusNotFound},
		{util.ErrAlreadySubmitted, http.StatusConflict},
		{util.ErrRecordingExists, http.StatusConflict},
		{fmt.Errorf("question 2: %w", util.ErrInvalidQuestion), http.StatusBadRequest},
		{fmt.Errorf("%w: bad", util.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: upstream 500", util.ErrAIResponse), http.StatusBadGateway},
		{util.ErrAINotConfigured, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestHandleError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handleError(ctx, errors.New("dial tcp 10.0.0.1:3306: secret detail"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret detail")

	w = httptest.NewRecorder()
	ctx, _ = gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handleError(ctx, util.ErrQuarterLimit)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), util.ErrQuarterLimit.Error())
}

func TestParseCalendarTime(t *testing.T) {
	ts, ok := parseCalendarTime("2024-05-01T08:30:00Z", false)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC), ts.UTC())

	day, ok := parseCalendarTime("2024-05-01", false)
	assert.True(t, ok)
	assert.Equal(t, 0, day.Hour())

	end, ok := parseCalendarTime("2024-05-01", true)
	assert.True(t, ok)
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 1, end.Day())

	_, ok = parseCalendarTime("May 1", false)
	assert.False(t, ok)
}
