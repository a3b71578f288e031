package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
	"github.com/JonnyWalker81/ecotrack/backend/pkg/supabase"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type mockVerifier struct {
	users map[string]string
}

func (m *mockVerifier) VerifyToken(_ context.Context, token string) (*supabase.User, error) {
	id, ok := m.users[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return &supabase.User{ID: id}, nil
}

func newAuthRouter(resolver UserResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Auth(resolver), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":     c.GetString("user_id"),
			"ctx_user_id": logger.UserIDFromContext(c.Request.Context()),
		})
	})
	return r
}

func TestAuth_Bearer(t *testing.T) {
	r := newAuthRouter(BearerResolver{Verifier: &mockVerifier{users: map[string]string{"good": "user-1"}}})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid token", header: "Bearer good", status: http.StatusOK},
		{name: "unknown token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":"user-1","ctx_user_id":"user-1"}`, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "urn:ecotrack:error:unauthorized")
			}
		})
	}
}

func TestAuth_Header(t *testing.T) {
	r := newAuthRouter(HeaderResolver{Header: "X-User-ID"})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "student-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "student-7")

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "   ")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
