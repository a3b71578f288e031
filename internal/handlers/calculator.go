package handlers

import (
	"net/http"

	"github.com/JonnyWalker81/ecotrack/backend/internal/analytics"
	"github.com/JonnyWalker81/ecotrack/backend/internal/apierror"
	"github.com/JonnyWalker81/ecotrack/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// CalculatorHandler handles impact estimates for planned activities
type CalculatorHandler struct {
	insightService service.InsightService
}

// NewCalculatorHandler creates a new calculator handler
func NewCalculatorHandler(insightService service.InsightService) *CalculatorHandler {
	return &CalculatorHandler{insightService: insightService}
}

// CompoundRequest is the body of a compound estimate
type CompoundRequest struct {
	Activities []analytics.ActivityInput `json:"activities"`
}

func bindActivity(c *gin.Context) (analytics.ActivityInput, bool) {
	var req analytics.ActivityInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.WriteProblem(c, apierror.NewBadRequestError(apierror.GetRequestID(c),
			"Invalid request body: "+err.Error(), "Please check your input and try again"))
		return req, false
	}
	return req, true
}

// CalculateActivity estimates one activity
// POST /api/v1/calculator/activity
func (h *CalculatorHandler) CalculateActivity(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	req, ok := bindActivity(c)
	if !ok {
		return
	}

	estimate, err := h.insightService.CalculateActivity(c.Request.Context(), uid, req)
	if err != nil {
		writeError(c, "calculate activity", err)
		return
	}
	c.JSON(http.StatusOK, estimate)
}

// CalculateCompound estimates several activities together
// POST /api/v1/calculator/compound
func (h *CalculatorHandler) CalculateCompound(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req CompoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.WriteProblem(c, apierror.NewBadRequestError(apierror.GetRequestID(c),
			"Invalid request body: "+err.Error(), "Please check your input and try again"))
		return
	}

	estimate, err := h.insightService.CalculateCompound(c.Request.Context(), uid, req.Activities)
	if err != nil {
		writeError(c, "calculate compound", err)
		return
	}
	c.JSON(http.StatusOK, estimate)
}

// PredictOutcome estimates an activity with its success probability and plan
// POST /api/v1/calculator/predict
func (h *CalculatorHandler) PredictOutcome(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	req, ok := bindActivity(c)
	if !ok {
		return
	}

	prediction, err := h.insightService.PredictActivityOutcome(c.Request.Context(), uid, req)
	if err != nil {
		writeError(c, "predict outcome", err)
		return
	}
	c.JSON(http.StatusOK, prediction)
}
