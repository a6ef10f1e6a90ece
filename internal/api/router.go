// Package api assembles the HTTP router.
package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventhub/checkin-service/internal/api/checkin"
	"github.com/eventhub/checkin-service/internal/api/dashboard"
	"github.com/eventhub/checkin-service/internal/api/middleware"
	"github.com/eventhub/checkin-service/internal/config"
	"github.com/eventhub/checkin-service/pkg/logger"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// NewRouter builds the gin engine with every route mounted.
func NewRouter(
	cfg *config.Config,
	checkInHandler *checkin.Handler,
	dashboardHandler *dashboard.Handler,
	checks map[string]HealthCheck,
	log *logger.Logger,
) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceID())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	r.GET("/health", healthHandler(checks))

	if cfg.Metrics.Prometheus.Enabled {
		path := cfg.Metrics.Prometheus.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/api/v1", middleware.Identity())
	checkInHandler.RegisterRoutes(v1)
	dashboardHandler.RegisterRoutes(v1)

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = len(origins) == 0 || slices.Contains(origins, "*")
	if !c.AllowAllOrigins {
		c.AllowOrigins = origins
	}
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.HeaderUserID, middleware.HeaderUserRole, middleware.HeaderTraceID}
	c.ExposeHeaders = []string{middleware.HeaderTraceID}
	return c
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":    state,
			"checks":    results,
			"timestamp": time.Now().UTC(),
		})
	}
}
