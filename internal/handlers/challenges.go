package handlers

import (
	"net/http"

	"github.com/JonnyWalker81/ecotrack/backend/internal/apierror"
	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/JonnyWalker81/ecotrack/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// ChallengeHandler handles weekly challenge endpoints
type ChallengeHandler struct {
	insightService service.InsightService
}

// NewChallengeHandler creates a new challenge handler
func NewChallengeHandler(insightService service.InsightService) *ChallengeHandler {
	return &ChallengeHandler{insightService: insightService}
}

// GenerateChallenge returns this week's challenge, creating it if needed
// POST /api/v1/challenges/generate
func (h *ChallengeHandler) GenerateChallenge(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	challenge, err := h.insightService.GenerateChallenge(c.Request.Context(), uid)
	if err != nil {
		writeError(c, "generate challenge", err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

// GetCurrentChallenge returns this week's challenge
// GET /api/v1/challenges/current
func (h *ChallengeHandler) GetCurrentChallenge(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	challenge, err := h.insightService.GetCurrentChallenge(c.Request.Context(), uid)
	if err != nil {
		writeError(c, "get current challenge", err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

// UpdateProgress credits progress to this week's challenge
// POST /api/v1/challenges/progress
func (h *ChallengeHandler) UpdateProgress(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req models.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Delta == nil {
		apierror.WriteProblem(c, apierror.NewFieldError(apierror.GetRequestID(c), "delta", "must be a positive integer"))
		return
	}

	challenge, err := h.insightService.UpdateChallengeProgress(c.Request.Context(), uid, *req.Delta)
	if err != nil {
		writeError(c, "update challenge progress", err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}
