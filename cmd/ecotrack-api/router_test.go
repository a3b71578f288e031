package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/config"
	"github.com/JonnyWalker81/ecotrack/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{Port: "0", Env: "test"},
		Log:        config.LogConfig{Level: "error", Format: "json"},
		Store:      config.StoreConfig{Driver: "memory"},
		Cache:      config.CacheConfig{Backend: "memory", KeyPrefix: "test:"},
		Generative: config.GenerativeConfig{Provider: "disabled"},
		Auth:       config.AuthConfig{Mode: "header", UserHeader: "X-User-ID"},
		RateLimit:  config.RateLimitConfig{GeneratePerMinute: 1},
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	resolver, err := a.userResolver()
	require.NoError(t, err)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.GeneratePerMinute, time.Minute, "test-generate")
	t.Cleanup(limiter.Stop)

	return newRouter(routerDeps{
		env:           cfg.Server.Env,
		db:            a.db,
		metrics:       a.metrics,
		service:       a.service,
		resolver:      resolver,
		generateLimit: limiter,
	})
}

func do(r http.Handler, method, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","env":"test"}`, w.Body.String())
}

func TestRouter_InsightsAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/insights/recommendation", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/v1/insights/recommendation", "user-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"generated_by":"rule_based"`)

	w = do(r, http.MethodGet, "/api/v1/insights/prediction?horizon_days=366", "user-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ecotrack_http_requests_total{route="/api/v1/insights/recommendation",status="200"} 1`)
	assert.Contains(t, w.Body.String(), `ecotrack_insight_cache_lookups_total{feature="recommendation",result="miss"} 1`)
}

func TestRouter_GenerateIsRateLimited(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/challenges/generate", "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/v1/challenges/generate", "user-1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(r, http.MethodGet, "/api/v1/challenges/current", "user-1")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_CalculatorPredict(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/calculator/predict",
		strings.NewReader(`{"category":"tree_planting","quantity":5}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success_probability":70`)
	assert.Contains(t, w.Body.String(), `"estimated_timeline_days":2`)

	w = do(r, http.MethodPost, "/api/v1/calculator/predict", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
