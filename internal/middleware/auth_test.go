package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-test-secret-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func tokenFor(t *testing.T, roles ...model.RoleName) string {
	t.Helper()
	user := &model.User{BaseModel: model.BaseModel{ID: 9}, Email: "someone@example.com"}
	for _, r := range roles {
		user.Roles = append(user.Roles, model.Role{Name: r})
	}
	token, err := util.GenerateJWT(user, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func newRouter() *gin.Engine {
	r := gin.New()
	api := r.Group("/api", AuthMiddleware(testSecret))
	api.GET("/profile", func(c *gin.Context) { util.Success(c, nil) })
	api.GET("/trainer/courses", RoleMiddleware(model.Trainer), func(c *gin.Context) { util.Success(c, nil) })
	api.GET("/quizzes/1", RoleMiddleware(model.Trainee), func(c *gin.Context) { util.Success(c, nil) })
	api.GET("/admin/users", RoleMiddleware(model.Admin), func(c *gin.Context) { util.Success(c, nil) })
	return r
}

func do(r http.Handler, path, token string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusUnauthorized, do(r, "/api/profile", ""))
	assert.Equal(t, http.StatusUnauthorized, do(r, "/api/profile", "not-a-jwt"))
	assert.Equal(t, http.StatusOK, do(r, "/api/profile", tokenFor(t, model.Trainee)))

	// query token is accepted for websocket clients
	assert.Equal(t, http.StatusOK, do(r, "/api/profile?token="+tokenFor(t, model.Trainer), ""))
}

func TestAuthMiddlewareRejectsExpiredAndForeignTokens(t *testing.T) {
	r := newRouter()
	user := &model.User{BaseModel: model.BaseModel{ID: 1}, Roles: []model.Role{{Name: model.Admin}}}

	expired, err := util.GenerateJWT(user, testSecret, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/api/profile", expired))

	foreign, err := util.GenerateJWT(user, "another-secret-another-secret-xx", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/api/profile", foreign))
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter()

	tests := []struct {
		name  string
		path  string
		roles []model.RoleName
		want  int
	}{
		{"trainee denied trainer route", "/api/trainer/courses", []model.RoleName{model.Trainee}, http.StatusForbidden},
		{"trainer denied trainee route", "/api/quizzes/1", []model.RoleName{model.Trainer}, http.StatusForbidden},
		{"trainer on trainer route", "/api/trainer/courses", []model.RoleName{model.Trainer}, http.StatusOK},
		{"trainee on trainee route", "/api/quizzes/1", []model.RoleName{model.Trainee}, http.StatusOK},
		{"trainer denied admin route", "/api/admin/users", []model.RoleName{model.Trainer}, http.StatusForbidden},
		{"admin passes trainer route", "/api/trainer/courses", []model.RoleName{model.Admin}, http.StatusOK},
		{"admin passes trainee route", "/api/quizzes/1", []model.RoleName{model.Admin}, http.StatusOK},
		{"multi role user", "/api/trainer/courses", []model.RoleName{model.Trainee, model.Trainer}, http.StatusOK},
		{"no roles", "/api/quizzes/1", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, do(r, tt.path, tokenFor(t, tt.roles...)))
		})
	}
}

func TestRoleMiddlewareWithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/x", RoleMiddleware(model.Trainer), func(c *gin.Context) { util.Success(c, nil) })
	assert.Equal(t, http.StatusUnauthorized, do(r, "/x", ""))
}
