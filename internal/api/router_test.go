//nolint:noctx // Test file uses http.NewRequest for simplicity
package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/eventhub/checkin-service/internal/api/checkin"
	"github.com/eventhub/checkin-service/internal/api/dashboard"
	"github.com/eventhub/checkin-service/internal/config"
	"github.com/eventhub/checkin-service/pkg/logger"
)

func newTestRouter(checks map[string]HealthCheck) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Metrics.Prometheus.Enabled = true

	log := logger.Nop()
	return NewRouter(
		cfg,
		checkin.NewHandlerWithInterfaces(nil, log),
		dashboard.NewHandlerWithInterfaces(nil, nil, log),
		checks,
		log,
	)
}

func TestHealth(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	r := newTestRouter(map[string]HealthCheck{"database": ok, "redis": ok})
	req, _ := http.NewRequest(http.MethodGet, "/health", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	r = newTestRouter(map[string]HealthCheck{"database": ok, "redis": down})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(nil)
	req, _ := http.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAPIRequiresIdentity(t *testing.T) {
	r := newTestRouter(nil)
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/leaderboard", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)

	c := corsConfig([]string{"https://events.example.com"})
	assert.False(t, c.AllowAllOrigins)
	assert.Equal(t, []string{"https://events.example.com"}, c.AllowOrigins)
}
