package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/handlers"
	"github.com/JonnyWalker81/ecotrack/backend/internal/metrics"
	"github.com/JonnyWalker81/ecotrack/backend/internal/middleware"
	"github.com/JonnyWalker81/ecotrack/backend/internal/service"
	"github.com/gin-gonic/gin"
)

type routerDeps struct {
	env            string
	allowedOrigins []string
	db             *sql.DB
	metrics        *metrics.Metrics
	service        service.InsightService
	resolver       middleware.UserResolver
	generateLimit  *middleware.RateLimiter
}

func newRouter(deps routerDeps) *gin.Engine {
	insightsHandler := handlers.NewInsightsHandler(deps.service)
	challengeHandler := handlers.NewChallengeHandler(deps.service)
	calculatorHandler := handlers.NewCalculatorHandler(deps.service)

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(deps.metrics.Middleware())
	router.Use(middleware.CORS(deps.allowedOrigins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok", "env": deps.env}
		if deps.db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.db.PingContext(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body["store"] = err.Error()
			}
		}
		c.JSON(status, body)
	})
	router.GET("/metrics", gin.WrapH(deps.metrics.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(deps.resolver))
	{
		insights := v1.Group("/insights")
		{
			insights.GET("/recommendation", insightsHandler.GetRecommendation)
			insights.GET("/prediction", insightsHandler.GetPrediction)
			insights.GET("/efficiency", insightsHandler.GetEfficiency)
		}

		challenges := v1.Group("/challenges")
		{
			challenges.POST("/generate", middleware.RateLimit(deps.generateLimit), challengeHandler.GenerateChallenge)
			challenges.GET("/current", challengeHandler.GetCurrentChallenge)
			challenges.POST("/progress", challengeHandler.UpdateProgress)
		}

		calculator := v1.Group("/calculator")
		{
			calculator.POST("/activity", calculatorHandler.CalculateActivity)
			calculator.POST("/compound", calculatorHandler.CalculateCompound)
			calculator.POST("/predict", calculatorHandler.PredictOutcome)
		}
	}

	return router
}
