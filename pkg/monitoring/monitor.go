package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// QuizSubmissions 按触发方式统计交卷，outcome 为 graded 或 duplicate
	QuizSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_quiz_submissions_total",
			Help: "Quiz submission attempts by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	ProctorViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_proctor_violations_total",
			Help: "Proctoring violations reported by clients",
		},
		[]string{"type"},
	)

	AIGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_ai_generation_total",
			Help: "AI quiz generation requests by outcome",
		},
		[]string{"outcome"},
	)

	ProctorMonitors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lms_proctor_monitor_connections",
			Help: "Connected proctoring monitor websockets",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(QuizSubmissions)
		prometheus.MustRegister(ProctorViolations)
		prometheus.MustRegister(AIGenerations)
		prometheus.MustRegister(ProctorMonitors)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
