package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestGinMiddleware_RecordsRouteAndStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/v1/courses/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/broken", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	for _, path := range []string{"/api/v1/courses/7", "/api/v1/broken"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "GET /api/v1/courses/:id", ok.Name())
	assert.Equal(t, trace.SpanKindServer, ok.SpanKind())
	a := attrs(ok)
	assert.Equal(t, "/api/v1/courses/:id", a[semconv.HTTPRouteKey].AsString())
	assert.Equal(t, "/api/v1/courses/7", a[semconv.HTTPTargetKey].AsString())
	assert.Equal(t, int64(200), a[semconv.HTTPStatusCodeKey].AsInt64())
	assert.Equal(t, codes.Unset, ok.Status().Code)

	broken := spans[1]
	assert.Equal(t, int64(502), attrs(broken)[semconv.HTTPStatusCodeKey].AsInt64())
	assert.Equal(t, codes.Error, broken.Status().Code)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, Sampler(0.5).Description(), "TraceIDRatioBased{0.5}")
	assert.Contains(t, Sampler(1).Description(), "ParentBased")
}
