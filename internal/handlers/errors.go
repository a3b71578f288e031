package handlers

import (
	"errors"

	"github.com/JonnyWalker81/ecotrack/backend/internal/apierror"
	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/JonnyWalker81/ecotrack/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// userID returns the authenticated user, writing a 401 when absent
func userID(c *gin.Context) (string, bool) {
	id := c.GetString("user_id")
	if id == "" {
		apierror.WriteProblem(c, apierror.NewUnauthorizedError(apierror.GetRequestID(c)))
		return "", false
	}
	return id, true
}

// writeError maps service errors onto problem responses. Unexpected errors
// are logged and reported without detail.
func writeError(c *gin.Context, op string, err error) {
	requestID := apierror.GetRequestID(c)

	var inputErr *models.InputError
	switch {
	case errors.As(err, &inputErr):
		apierror.WriteProblem(c, apierror.NewFieldError(requestID, inputErr.Field, inputErr.Message))
	case errors.Is(err, service.ErrChallengeNotFound):
		apierror.WriteProblem(c, apierror.NewNotFoundError(requestID, "challenge", err.Error()))
	case errors.Is(err, service.ErrChallengeClosed):
		apierror.WriteProblem(c, apierror.NewChallengeClosedError(requestID, err.Error()))
	default:
		logger.Ctx(c.Request.Context()).Error(op+" failed", logger.Err(err))
		apierror.WriteProblem(c, apierror.NewInternalError(requestID))
	}
}
