package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://allowed.test"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{name: "allowed origin", method: http.MethodGet, origin: "http://allowed.test", wantStatus: http.StatusOK, wantOrigin: "http://allowed.test"},
		{name: "unknown origin", method: http.MethodGet, origin: "http://evil.test", wantStatus: http.StatusOK},
		{name: "preflight", method: http.MethodOptions, origin: "http://allowed.test", wantStatus: http.StatusNoContent, wantOrigin: "http://allowed.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(2, time.Hour)

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))

	l.Sweep(time.Now().Add(4 * time.Hour))
	assert.Empty(t, l.visitors)
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	l := NewIPRateLimiter(1, time.Hour)
	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
