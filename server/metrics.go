package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrotagger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agrotagger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agrotagger",
			Subsystem: "classifier",
			Name:      "inference_duration_seconds",
			Help:      "Time spent waiting for and running a model session",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"classifier", "result"},
	)

	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrotagger",
			Subsystem: "classifier",
			Name:      "predictions_total",
			Help:      "Predictions by classifier and label",
		},
		[]string{"classifier", "label"},
	)

	rasterSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrotagger",
			Subsystem: "raster",
			Name:      "samples_total",
			Help:      "Raster lookups by layer and outcome",
		},
		[]string{"layer", "result"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agrotagger",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, inferenceDuration,
		predictionsTotal, rasterSamplesTotal, rateLimitedTotal)
}

// MetricsMiddleware records request counts and latency by route pattern.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		// the route pattern keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(path, c.Request.Method, status).Inc()
		httpRequestDuration.WithLabelValues(path, c.Request.Method, status).Observe(time.Since(start).Seconds())
	}
}

func observeInference(classifier string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	inferenceDuration.WithLabelValues(classifier, result).Observe(d.Seconds())
}
