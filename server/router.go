package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/krau/agrotagger/raster"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type Options struct {
	Token          string
	MaxUploadBytes int64
	// RateLimit is the sustained requests per second across all routes; 0 disables it.
	RateLimit      float64
	RateBurst      int
}

// NewRouter wires every classifier endpoint, the raster sampler, health and metrics.
func NewRouter(opts Options, endpoints []Endpoint, layers *raster.Set) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), MetricsMiddleware())
	if opts.RateLimit > 0 {
		r.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))))
	}

	auth := AuthMiddleware(opts.Token)
	names := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		r.POST(ep.Route, auth, BodyLimitMiddleware(opts.MaxUploadBytes), PredictHandler(ep))
		names = append(names, ep.Predictor.Name())
	}
	r.GET("/sample", auth, SampleHandler(layers))
	r.GET("/health", HealthHandler(names))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Handler wraps the router with CORS handling for browser clients.
func Handler(r http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return r
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})(r)
}

func RateLimitMiddleware(l *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			rateLimitedTotal.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

func BodyLimitMiddleware(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.ContentLength > n {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		if n > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
