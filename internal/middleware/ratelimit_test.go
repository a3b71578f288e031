package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Window(t *testing.T) {
	limiter := NewRateLimiter(2, time.Hour, "test-window")
	defer limiter.Stop()

	allowed, count := limiter.isAllowed("user-1")
	assert.True(t, allowed)
	assert.Equal(t, 1, count)

	allowed, _ = limiter.isAllowed("user-1")
	assert.True(t, allowed)

	allowed, count = limiter.isAllowed("user-1")
	assert.False(t, allowed)
	assert.Equal(t, 3, count)

	allowed, _ = limiter.isAllowed("user-2")
	assert.True(t, allowed, "limits are per key")
}

func TestRateLimit_PerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(1, time.Hour, "test-generate")
	defer limiter.Stop()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-User-ID"))
		c.Next()
	})
	r.POST("/generate", RateLimit(limiter), func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/generate", nil)
		req.Header.Set("X-User-ID", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send("alice")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = send("alice")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "urn:ecotrack:error:rate_limit")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = send("bob")
	assert.Equal(t, http.StatusCreated, w.Code)
}
