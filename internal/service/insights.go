package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/analytics"
	"github.com/JonnyWalker81/ecotrack/backend/internal/cache"
	"github.com/JonnyWalker81/ecotrack/backend/internal/generative"
	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/JonnyWalker81/ecotrack/backend/internal/repository"
	"golang.org/x/sync/errgroup"
)

const (
	FeatureRecommendation = "recommendation"
	FeaturePrediction     = "prediction"
	FeatureEfficiency     = "efficiency"
	FeatureChallenge      = "challenge"

	// DefaultHorizonDays is used when a prediction request names no horizon
	DefaultHorizonDays = 30

	// RecentWindow is the look-back for "recent" totals and frequencies
	RecentWindow = 30 * 24 * time.Hour

	maxMessageChars = 600
)

type insightService struct {
	activities repository.ActivityRepository
	challenges repository.ChallengeRepository
	cache      *cache.InsightCache
	policy     *generative.Policy

	recommender *analytics.RecommendationEngine
	analyzer    *analytics.EfficiencyAnalyzer
	generator   *analytics.ChallengeGenerator
	catalog     *analytics.Catalog

	now func() time.Time
}

// Option configures the insight service
type Option func(*insightService)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *insightService) { s.now = now }
}

// NewInsightService creates a new insight service
func NewInsightService(
	activities repository.ActivityRepository,
	challenges repository.ChallengeRepository,
	insightCache *cache.InsightCache,
	policy *generative.Policy,
	catalog *analytics.Catalog,
	opts ...Option,
) InsightService {
	if policy == nil {
		policy = generative.NewPolicy(nil, generative.PolicyConfig{})
	}
	s := &insightService{
		activities:  activities,
		challenges:  challenges,
		cache:       insightCache,
		policy:      policy,
		recommender: analytics.NewRecommendationEngine(catalog),
		analyzer:    analytics.NewEfficiencyAnalyzer(catalog),
		generator:   analytics.NewChallengeGenerator(catalog),
		catalog:     catalog,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// history is one user's approved records plus, when requested, the
// platform aggregates
type history struct {
	records   []models.ActivityRecord
	summary   models.ActivitySummary
	recent    models.ActivitySummary
	aggregate *models.PlatformAggregates
}

func (s *insightService) loadHistory(ctx context.Context, userID string, withAggregates bool, now time.Time) (*history, error) {
	h := &history{aggregate: &models.PlatformAggregates{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := s.activities.GetApprovedActivities(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get activities: %w", err)
		}
		h.records = records
		return nil
	})
	if withAggregates {
		g.Go(func() error {
			agg, err := s.activities.GetPlatformAggregates(gctx)
			if err != nil {
				return fmt.Errorf("failed to get platform aggregates: %w", err)
			}
			if agg != nil {
				h.aggregate = agg
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	h.summary = models.Summarize(h.records)
	h.recent = models.Summarize(models.Since(h.records, now.Add(-RecentWindow)))
	return h, nil
}

func (h *history) level() models.Level {
	return models.LevelFor(h.summary.TotalPoints, h.summary.ActivityCount)
}

func categoryCounts(summary models.ActivitySummary) map[models.Category]int {
	counts := make(map[models.Category]int, len(summary.ByCategory))
	for cat, totals := range summary.ByCategory {
		counts[cat] = totals.Count
	}
	return counts
}

// GetRecommendation returns the user's next-action suggestion for this week
func (s *insightService) GetRecommendation(ctx context.Context, userID string) (*models.RecommendationResult, error) {
	now := s.now().UTC()
	key, ttl := cache.KeyFor(userID, FeatureRecommendation, cache.RefreshWeekly, now)

	return cache.GetOrCompute(ctx, s.cache, key, ttl, func(ctx context.Context) (*models.RecommendationResult, error) {
		h, err := s.loadHistory(ctx, userID, true, now)
		if err != nil {
			return nil, err
		}

		in := analytics.RecommendationInput{
			Level:             h.level(),
			CategoryCounts:    categoryCounts(h.summary),
			PlatformFrequency: h.aggregate.PerCategoryFrequency,
			RecentPoints:      h.recent.TotalPoints,
			RecentImpactKg:    h.recent.TotalImpactKg,
		}
		rec, err := s.recommender.Recommend(in)
		if err != nil {
			return nil, fmt.Errorf("failed to build recommendation: %w", err)
		}

		result := &models.RecommendationResult{
			UserID:            userID,
			SuggestedCategory: rec.Category,
			TargetQuantity:    rec.TargetQuantity,
			ProjectedPoints:   rec.ProjectedPoints,
			ProjectedImpactKg: rec.ProjectedImpactKg,
			GapScore:          rec.GapScore,
			Level:             in.Level,
			Message:           rec.Message,
			GeneratedBy:       models.GeneratedByRuleBased,
			CreatedAt:         now,
			ValidUntil:        now.Add(ttl),
		}

		outcome := s.policy.Attempt(ctx, FeatureRecommendation, analytics.RecommendationPrompt(rec, in), validateMessage)
		if ok, isOk := outcome.(generative.Ok); isOk {
			result.Message = ok.Content
			result.GeneratedBy = models.GeneratedByGenerative
		}
		return result, nil
	})
}

func validateMessage(content string) error {
	if len(content) > maxMessageChars {
		return fmt.Errorf("message too long: %d chars", len(content))
	}
	return nil
}

// GetPrediction forecasts the user's impact horizonDays ahead
func (s *insightService) GetPrediction(ctx context.Context, userID string, horizonDays int) (*models.PredictionResult, error) {
	if err := analytics.ValidateHorizon(horizonDays); err != nil {
		return nil, models.NewInputError("horizon_days", "must be an integer between 1 and %d", analytics.MaxHorizonDays)
	}

	now := s.now().UTC()
	feature := fmt.Sprintf("%s:h%d", FeaturePrediction, horizonDays)
	key, ttl := cache.KeyFor(userID, feature, cache.RefreshFiveMinutes, now)

	return cache.GetOrCompute(ctx, s.cache, key, ttl, func(ctx context.Context) (*models.PredictionResult, error) {
		h, err := s.loadHistory(ctx, userID, false, now)
		if err != nil {
			return nil, err
		}

		forecast, err := analytics.PredictTrend(analytics.DailySeries(h.records), horizonDays)
		if err != nil {
			return nil, fmt.Errorf("failed to predict trend: %w", err)
		}
		logger.Ctx(ctx).Debug("trend computed",
			logger.Feature(FeaturePrediction),
			logger.Int("sample_size", forecast.SampleSize),
			logger.Float64("slope", forecast.Slope),
			logger.Float64("confidence", forecast.Confidence))

		return &models.PredictionResult{
			UserID:               userID,
			HorizonDays:          horizonDays,
			ProjectedDailyImpact: forecast.DailyImpact,
			ProjectedTotalImpact: forecast.TotalImpact,
			WeeklyProjection:     forecast.WeeklyProjection,
			MonthlyProjection:    forecast.MonthlyProjection,
			Confidence:           forecast.Confidence,
			TrendSlope:           forecast.Slope,
			TrendDirection:       forecast.Direction,
			SampleSize:           forecast.SampleSize,
			CreatedAt:            now,
		}, nil
	})
}

// GetEfficiency benchmarks the user's points per kg against the platform
func (s *insightService) GetEfficiency(ctx context.Context, userID string) (*models.EfficiencyResult, error) {
	now := s.now().UTC()
	key, ttl := cache.KeyFor(userID, FeatureEfficiency, cache.RefreshDaily, now)

	return cache.GetOrCompute(ctx, s.cache, key, ttl, func(ctx context.Context) (*models.EfficiencyResult, error) {
		h, err := s.loadHistory(ctx, userID, true, now)
		if err != nil {
			return nil, err
		}

		assessment, err := s.analyzer.Analyze(analytics.EfficiencyInput{
			UserPoints:       h.summary.TotalPoints,
			UserImpactKg:     h.summary.TotalImpactKg,
			PlatformPoints:   h.aggregate.TotalPoints,
			PlatformImpactKg: h.aggregate.TotalImpactKg,
			ByCategory:       h.summary.ByCategory,
			PopulationRatios: h.aggregate.PopulationRatios,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to analyze efficiency: %w", err)
		}
		logger.Ctx(ctx).Debug("efficiency assessed",
			logger.Feature(FeatureEfficiency),
			logger.Float64("platform_ratio", assessment.PlatformAverageRatio),
			logger.Float64("percentile", assessment.Percentile),
			logger.String("tier", string(assessment.Tier)))

		return &models.EfficiencyResult{
			UserID:               userID,
			UserRatio:            assessment.UserRatio,
			PlatformAverageRatio: assessment.PlatformAverageRatio,
			Percentile:           assessment.Percentile,
			PerformanceTier:      assessment.Tier,
			WeakestCategory:      assessment.WeakestCategory,
			Suggestion:           assessment.Suggestion,
			CreatedAt:            now,
		}, nil
	})
}

// GenerateChallenge returns the user's challenge for the current period,
// creating it on the first call
func (s *insightService) GenerateChallenge(ctx context.Context, userID string) (*models.ChallengeResult, error) {
	now := s.now().UTC()
	period := analytics.PeriodKey(now)
	log := logger.Ctx(ctx).With(logger.Feature(FeatureChallenge), logger.PeriodKey(period))

	expired, err := s.challenges.ExpireStale(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire challenges: %w", err)
	}
	if expired > 0 {
		log.Info("expired stale challenges", logger.Int64("count", expired))
	}

	existing, err := s.challenges.GetByPeriod(ctx, userID, period)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	key, ttl := cache.KeyFor(userID, FeatureChallenge, cache.RefreshWeekly, now)
	draft, err := cache.GetOrCompute(ctx, s.cache, key, ttl, func(ctx context.Context) (*models.ChallengeDraft, error) {
		return s.draftChallenge(ctx, userID, period, now)
	})
	if err != nil {
		return nil, err
	}

	stored, err := s.challenges.Create(ctx, &models.ChallengeResult{
		ID:           newChallengeID(),
		UserID:       userID,
		PeriodKey:    draft.PeriodKey,
		Level:        draft.Level,
		TemplateID:   draft.TemplateID,
		Target:       draft.Target,
		TargetMetric: draft.TargetMetric,
		RewardPoints: draft.RewardPoints,
		Title:        draft.Title,
		Description:  draft.Description,
		Status:       models.ChallengeActive,
		GeneratedBy:  draft.GeneratedBy,
		CreatedAt:    now,
		ExpiresAt:    draft.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}
	log.Info("challenge created",
		logger.String("challenge_id", stored.ID),
		logger.String("template_id", stored.TemplateID),
		logger.Int("target", stored.Target))
	return stored, nil
}

func (s *insightService) draftChallenge(ctx context.Context, userID, period string, now time.Time) (*models.ChallengeDraft, error) {
	h, err := s.loadHistory(ctx, userID, false, now)
	if err != nil {
		return nil, err
	}

	draft, err := s.generator.Generate(analytics.ChallengeInput{
		UserID:            userID,
		PeriodKey:         period,
		Level:             h.level(),
		RecentFrequencies: categoryCounts(h.recent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge: %w", err)
	}

	var text analytics.ChallengeCopy
	outcome := s.policy.Attempt(ctx, FeatureChallenge, analytics.ChallengePrompt(draft), func(content string) error {
		parsed, err := analytics.ParseChallengeCopy(content)
		if err != nil {
			return err
		}
		text = parsed
		return nil
	})
	if _, ok := outcome.(generative.Ok); ok {
		draft.Title = text.Title
		draft.Description = text.Description
		draft.GeneratedBy = models.GeneratedByGenerative
	}
	return &draft, nil
}

// GetCurrentChallenge returns the challenge for the current period
func (s *insightService) GetCurrentChallenge(ctx context.Context, userID string) (*models.ChallengeResult, error) {
	period := analytics.PeriodKey(s.now())
	c, err := s.challenges.GetByPeriod(ctx, userID, period)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

// UpdateChallengeProgress credits delta units to the current challenge
func (s *insightService) UpdateChallengeProgress(ctx context.Context, userID string, delta int) (*models.ChallengeResult, error) {
	return s.ApplyCheckin(ctx, userID, delta, s.now())
}

// ApplyCheckin credits delta units to the current period's challenge.
// A check-in dated in another period is refused with ErrChallengeClosed,
// as is one against a challenge that is no longer active.
func (s *insightService) ApplyCheckin(ctx context.Context, userID string, delta int, occurredAt time.Time) (*models.ChallengeResult, error) {
	if delta <= 0 {
		return nil, models.NewInputError("delta", "must be a positive integer")
	}

	now := s.now().UTC()
	period := analytics.PeriodKey(now)
	if occurredAt.IsZero() {
		occurredAt = now
	}
	if analytics.PeriodKey(occurredAt) != period {
		return nil, fmt.Errorf("%w: check-in belongs to %s", ErrChallengeClosed, analytics.PeriodKey(occurredAt))
	}

	c, err := s.challenges.IncrementProgress(ctx, userID, period, delta, now)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrChallengeNotFound
	case errors.Is(err, repository.ErrNotActive):
		status := "closed"
		if c != nil {
			status = string(c.Status)
		}
		return nil, fmt.Errorf("%w: status %s", ErrChallengeClosed, status)
	case err != nil:
		return nil, fmt.Errorf("failed to update challenge progress: %w", err)
	}

	if c.Status == models.ChallengeCompleted {
		logger.Ctx(ctx).Info("challenge completed",
			logger.String("challenge_id", c.ID),
			logger.Int("reward_points", c.RewardPoints))
	}
	return c, nil
}

// userContext derives the experience and consistency inputs of the
// calculator from the user's approved history
func (s *insightService) userContext(ctx context.Context, userID string) (analytics.UserContext, error) {
	h, err := s.loadHistory(ctx, userID, false, s.now().UTC())
	if err != nil {
		return analytics.UserContext{}, err
	}
	return analytics.UserContext{
		ApprovedActivities: h.summary.ActivityCount,
		RecentActivities:   h.recent.ActivityCount,
	}, nil
}

// CalculateActivity estimates the impact of one planned activity for userID
func (s *insightService) CalculateActivity(ctx context.Context, userID string, in analytics.ActivityInput) (*analytics.ImpactEstimate, error) {
	if err := analytics.ValidateActivity(in); err != nil {
		return nil, err
	}
	uc, err := s.userContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	est, err := analytics.CalculateActivity(in, uc)
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Debug("activity estimated",
		logger.Category(string(in.Category)),
		logger.Float64("carbon_kg", est.CarbonKg),
		logger.Float64("efficiency_score", est.EfficiencyScore),
		logger.Float64("context_multiplier", uc.Multiplier()))
	return &est, nil
}

// CalculateCompound estimates the combined impact of several activities
func (s *insightService) CalculateCompound(ctx context.Context, userID string, items []analytics.ActivityInput) (*analytics.CompoundEstimate, error) {
	if len(items) == 0 {
		return nil, models.NewInputError("activities", "at least one activity is required")
	}
	for _, item := range items {
		if err := analytics.ValidateActivity(item); err != nil {
			return nil, err
		}
	}
	uc, err := s.userContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	est, err := analytics.CalculateCompound(items, uc)
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Debug("compound estimated",
		logger.Int("activities", len(items)),
		logger.Float64("carbon_kg", est.CarbonKg),
		logger.Float64("synergy_multiplier", est.SynergyMultiplier))
	return &est, nil
}

// PredictActivityOutcome estimates a planned activity together with its
// success probability, timeline and risks
func (s *insightService) PredictActivityOutcome(ctx context.Context, userID string, in analytics.ActivityInput) (*analytics.OutcomePrediction, error) {
	if err := analytics.ValidateActivity(in); err != nil {
		return nil, err
	}
	uc, err := s.userContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	out, err := s.catalog.PredictOutcome(in, uc)
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Debug("outcome predicted",
		logger.Category(string(in.Category)),
		logger.Float64("success_probability", out.SuccessProbability),
		logger.Int("timeline_days", out.EstimatedTimelineDays))
	return &out, nil
}
