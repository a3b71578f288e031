package service

import (
	"context"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/analytics"
	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
)

// InsightService defines the interface for the personalization features
type InsightService interface {
	GetRecommendation(ctx context.Context, userID string) (*models.RecommendationResult, error)
	GetPrediction(ctx context.Context, userID string, horizonDays int) (*models.PredictionResult, error)
	GetEfficiency(ctx context.Context, userID string) (*models.EfficiencyResult, error)

	GenerateChallenge(ctx context.Context, userID string) (*models.ChallengeResult, error)
	GetCurrentChallenge(ctx context.Context, userID string) (*models.ChallengeResult, error)
	UpdateChallengeProgress(ctx context.Context, userID string, delta int) (*models.ChallengeResult, error)
	// ApplyCheckin credits a check-in that happened at occurredAt. Only
	// check-ins in the current period are accepted.
	ApplyCheckin(ctx context.Context, userID string, delta int, occurredAt time.Time) (*models.ChallengeResult, error)

	// The calculator scales its estimates by the user's approved history.
	CalculateActivity(ctx context.Context, userID string, in analytics.ActivityInput) (*analytics.ImpactEstimate, error)
	CalculateCompound(ctx context.Context, userID string, items []analytics.ActivityInput) (*analytics.CompoundEstimate, error)
	PredictActivityOutcome(ctx context.Context, userID string, in analytics.ActivityInput) (*analytics.OutcomePrediction, error)
}
