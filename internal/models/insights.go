package models

import "time"

// GeneratedBy marks whether a result's text came from the rule tables or
// from the generative text service
type GeneratedBy string

const (
	GeneratedByRuleBased  GeneratedBy = "rule_based"
	GeneratedByGenerative GeneratedBy = "generative"
)

// Level is the coarse skill bracket derived from cumulative activity
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelNovice       Level = "novice"
	LevelIntermediate Level = "intermediate"
	LevelExpert       Level = "expert"
)

// Levels lists the brackets from lowest to highest
var Levels = []Level{LevelBeginner, LevelNovice, LevelIntermediate, LevelExpert}

// LevelFor maps cumulative points and approved activity count to a level
func LevelFor(points, activities int) Level {
	switch {
	case points >= 1000 && activities >= 20:
		return LevelExpert
	case points >= 500 && activities >= 10:
		return LevelIntermediate
	case points >= 100 && activities >= 3:
		return LevelNovice
	default:
		return LevelBeginner
	}
}

// PerformanceTier classifies an efficiency ratio against the population
type PerformanceTier string

const (
	TierBelowAverage PerformanceTier = "below_average"
	TierAverage      PerformanceTier = "average"
	TierAboveAverage PerformanceTier = "above_average"
	TierNoData       PerformanceTier = "no_data"
)

// TrendDirection describes the sign of a fitted trend
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendStable     TrendDirection = "stable"
	TrendDecreasing TrendDirection = "decreasing"
)

// RecommendationResult is the next-action suggestion for a user
type RecommendationResult struct {
	UserID            string      `json:"user_id"`
	SuggestedCategory Category    `json:"category"`
	TargetQuantity    int         `json:"target_quantity"`
	ProjectedPoints   int         `json:"projected_points"`
	ProjectedImpactKg float64     `json:"projected_impact_kg"`
	GapScore          float64     `json:"gap_score"`
	Level             Level       `json:"level"`
	Message           string      `json:"message"`
	GeneratedBy       GeneratedBy `json:"generated_by"`
	CreatedAt         time.Time   `json:"created_at"`
	ValidUntil        time.Time   `json:"valid_until"`
}

// PredictionResult is a linear forecast of a user's daily impact
type PredictionResult struct {
	UserID               string         `json:"user_id"`
	HorizonDays          int            `json:"horizon_days"`
	ProjectedDailyImpact float64        `json:"projected_daily_impact"`
	ProjectedTotalImpact float64        `json:"projected_total_impact"`
	WeeklyProjection     float64        `json:"weekly_projection"`
	MonthlyProjection    float64        `json:"monthly_projection"`
	Confidence           float64        `json:"confidence"`
	TrendSlope           float64        `json:"trend_slope"`
	TrendDirection       TrendDirection `json:"trend_direction"`
	SampleSize           int            `json:"sample_size"`
	CreatedAt            time.Time      `json:"created_at"`
}

// EfficiencyResult benchmarks a user's points-per-kg against the platform.
// UserRatio is nil when the user has no recorded impact.
type EfficiencyResult struct {
	UserID               string          `json:"user_id"`
	UserRatio            *float64        `json:"user_ratio"`
	PlatformAverageRatio float64         `json:"platform_average_ratio"`
	Percentile           float64         `json:"percentile"`
	PerformanceTier      PerformanceTier `json:"performance_tier"`
	WeakestCategory      *Category       `json:"weakest_category"`
	Suggestion           string          `json:"suggestion"`
	CreatedAt            time.Time       `json:"created_at"`
}
