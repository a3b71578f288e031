package analytics

import (
	"math"
	"slices"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
)

// OutcomeProfile is the planning data for one category
type OutcomeProfile struct {
	SuccessRate   float64  `yaml:"success_rate"`
	DailyCapacity float64  `yaml:"daily_capacity"`
	Approach      string   `yaml:"approach"`
	Risks         []string `yaml:"risks"`
	Tips          []string `yaml:"tips"`
}

type outcomeFile struct {
	Categories   map[models.Category]OutcomeProfile `yaml:"categories"`
	LargeGoalTip string                             `yaml:"large_goal_tip"`
}

const (
	minSuccessProbability = 0.1
	maxSuccessProbability = 0.95
	largeGoalQuantity     = 10
	veryLargeGoalQuantity = 20
)

// OutcomePrediction is the calculator estimate plus a plan for reaching it
type OutcomePrediction struct {
	ExpectedResult        ImpactEstimate `json:"expected_result"`
	SuccessProbability    float64        `json:"success_probability"`
	OptimalApproach       string         `json:"optimal_approach"`
	EstimatedTimelineDays int            `json:"estimated_timeline_days"`
	RiskFactors           []string       `json:"risk_factors"`
	Tips                  []string       `json:"tips"`
}

// PredictOutcome estimates an activity and how likely the user is to
// complete it. Larger goals lower the success probability and add a
// tip about splitting the work.
func (c *Catalog) PredictOutcome(in ActivityInput, uc UserContext) (OutcomePrediction, error) {
	est, err := CalculateActivity(in, uc)
	if err != nil {
		return OutcomePrediction{}, err
	}
	profile := c.outcomes.Categories[in.Category]

	p := profile.SuccessRate
	switch {
	case in.Quantity > veryLargeGoalQuantity:
		p *= 0.8
	case in.Quantity > largeGoalQuantity:
		p *= 0.9
	}
	p = math.Max(minSuccessProbability, math.Min(maxSuccessProbability, p))

	tips := slices.Clone(profile.Tips)
	if in.Quantity > largeGoalQuantity {
		tips = append(tips, c.outcomes.LargeGoalTip)
	}

	return OutcomePrediction{
		ExpectedResult:        est,
		SuccessProbability:    roundTo(p*100, 1),
		OptimalApproach:       profile.Approach,
		EstimatedTimelineDays: max(1, int(in.Quantity/profile.DailyCapacity)),
		RiskFactors:           slices.Clone(profile.Risks),
		Tips:                  tips,
	}, nil
}
