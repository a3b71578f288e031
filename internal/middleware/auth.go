package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/JonnyWalker81/ecotrack/backend/internal/apierror"
	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
	"github.com/JonnyWalker81/ecotrack/backend/pkg/supabase"
	"github.com/gin-gonic/gin"
)

var errMissingCredentials = errors.New("missing credentials")

// UserResolver identifies the caller of a request
type UserResolver interface {
	ResolveUser(c *gin.Context) (string, error)
}

// TokenVerifier checks a bearer token. *supabase.Client implements it.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*supabase.User, error)
}

// BearerResolver verifies "Authorization: Bearer <token>" with a TokenVerifier
type BearerResolver struct {
	Verifier TokenVerifier
}

func (r BearerResolver) ResolveUser(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", errMissingCredentials
	}
	user, err := r.Verifier.VerifyToken(c.Request.Context(), strings.TrimSpace(token))
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// HeaderResolver trusts a user id set by an upstream gateway
type HeaderResolver struct {
	Header string
}

func (r HeaderResolver) ResolveUser(c *gin.Context) (string, error) {
	id := strings.TrimSpace(c.GetHeader(r.Header))
	if id == "" {
		return "", errMissingCredentials
	}
	return id, nil
}

// Auth resolves the caller and stores it as "user_id" in the gin context
// and in the request context for logging
func Auth(resolver UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Ctx(c.Request.Context())

		userID, err := resolver.ResolveUser(c)
		if err != nil {
			if errors.Is(err, errMissingCredentials) {
				log.Debug("authentication failed: missing credentials")
			} else {
				log.Warn("authentication failed: verification error", logger.Err(err))
			}
			apierror.WriteProblem(c, apierror.NewUnauthorizedError(apierror.GetRequestID(c)))
			return
		}

		c.Set("user_id", userID)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), userID))

		c.Next()
	}
}
