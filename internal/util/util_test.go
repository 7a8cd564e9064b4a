package util

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lms_backend/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Email: "t@lms.test", Roles: []model.Role{{Name: model.Trainer}}}
	user.ID = 7

	token, err := GenerateJWT(user, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.True(t, claims.HasRole(model.Trainer))
	assert.False(t, claims.IsAdmin())

	_, err = ParseJWT(token, "other")
	assert.Error(t, err)
}

func TestParseJWT_Expired(t *testing.T) {
	user := &model.User{Email: "t@lms.test"}
	token, err := GenerateJWT(user, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.Error(t, err)
}

func TestValidateMimeType(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj")
	mime, err := ValidateMimeType(bytes.NewReader(pdf), []string{MimePDF})
	require.NoError(t, err)
	assert.Equal(t, MimePDF, mime)

	_, err = ValidateMimeType(bytes.NewReader([]byte("hello")), []string{MimePDF})
	assert.Error(t, err)
}

func TestResourceKind(t *testing.T) {
	assert.Equal(t, "pdf", ResourceKind(MimePDF))
	assert.Equal(t, "video", ResourceKind("video/webm"))
	assert.Equal(t, "image", ResourceKind("image/png"))
	assert.Equal(t, "document", ResourceKind("text/plain; charset=utf-8"))
}

func TestGenerateRandomString(t *testing.T) {
	a := GenerateRandomString(12)
	b := GenerateRandomString(12)
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
}

func TestPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query    string
		wantPage int
		wantSize int
	}{
		{"", 1, DefaultPageSize},
		{"page=3&pageSize=20", 3, 20},
		{"page=-1&pageSize=abc", 1, DefaultPageSize},
		{"pageSize=1000", 1, MaxPageSize},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		page, size := Pagination(c)
		assert.Equal(t, tt.wantPage, page, tt.query)
		assert.Equal(t, tt.wantSize, size, tt.query)
	}
	assert.Equal(t, 20, Offset(3, 10))
}
