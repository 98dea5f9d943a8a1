package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ggRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateguard_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	ggRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateguard_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ggScoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateguard_scores_total",
		Help: "Total scoring decisions by label.",
	}, []string{"label"})

	ggScoreValue = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateguard_score_value",
		Help:    "Distribution of returned scores.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	ggFaultsInjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateguard_faults_injected_total",
		Help: "Total test faults injected by kind.",
	}, []string{"fault"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		ggRequestsTotal.WithLabelValues(method, path, status).Inc()
		ggRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordScore records a completed scoring decision.
func RecordScore(label string, score float64) {
	ggScoresTotal.WithLabelValues(label).Inc()
	ggScoreValue.Observe(score)
}

// RecordFault records an injected test fault.
func RecordFault(name string) {
	ggFaultsInjected.WithLabelValues(name).Inc()
}
