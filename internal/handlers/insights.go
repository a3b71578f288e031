package handlers

import (
	"net/http"
	"strconv"

	"github.com/JonnyWalker81/ecotrack/backend/internal/analytics"
	"github.com/JonnyWalker81/ecotrack/backend/internal/apierror"
	"github.com/JonnyWalker81/ecotrack/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// InsightsHandler handles the personalized insight endpoints
type InsightsHandler struct {
	insightService service.InsightService
}

// NewInsightsHandler creates a new insights handler
func NewInsightsHandler(insightService service.InsightService) *InsightsHandler {
	return &InsightsHandler{insightService: insightService}
}

// GetRecommendation returns the user's next suggested action
// GET /api/v1/insights/recommendation
func (h *InsightsHandler) GetRecommendation(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	result, err := h.insightService.GetRecommendation(c.Request.Context(), uid)
	if err != nil {
		writeError(c, "get recommendation", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPrediction returns the impact forecast
// GET /api/v1/insights/prediction?horizon_days=30
func (h *InsightsHandler) GetPrediction(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	horizon := service.DefaultHorizonDays
	if raw, present := c.GetQuery("horizon_days"); present {
		n, err := strconv.Atoi(raw)
		if err != nil {
			apierror.WriteProblem(c, apierror.NewFieldError(apierror.GetRequestID(c), "horizon_days",
				"must be an integer between 1 and "+strconv.Itoa(analytics.MaxHorizonDays)))
			return
		}
		horizon = n
	}

	result, err := h.insightService.GetPrediction(c.Request.Context(), uid, horizon)
	if err != nil {
		writeError(c, "get prediction", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetEfficiency returns the points-per-kg benchmark
// GET /api/v1/insights/efficiency
func (h *InsightsHandler) GetEfficiency(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	result, err := h.insightService.GetEfficiency(c.Request.Context(), uid)
	if err != nil {
		writeError(c, "get efficiency", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
