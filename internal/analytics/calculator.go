package analytics

import (
	"math"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
)

// coefficients drive the impact calculator for one category
type coefficients struct {
	carbonPerUnit    float64
	pointsMultiplier float64
	complexity       float64
	// highImpact categories earn a 20% points uplift
	highImpact bool
}

var categoryCoefficients = map[models.Category]coefficients{
	models.CategoryTreePlanting: {carbonPerUnit: 22, pointsMultiplier: 50, complexity: 1.5, highImpact: true},
	models.CategoryRecycling:    {carbonPerUnit: 1.5, pointsMultiplier: 15, complexity: 1.0},
	models.CategoryCleanup:      {carbonPerUnit: 0.5, pointsMultiplier: 5, complexity: 1.2},
	models.CategoryAwareness:    {carbonPerUnit: 5, pointsMultiplier: 50, complexity: 2.0, highImpact: true},
	models.CategoryEnergySaving: {carbonPerUnit: 0.85, pointsMultiplier: 4, complexity: 1.3},
}

// synergies reward complementary categories logged together
var synergies = []struct {
	a, b       models.Category
	multiplier float64
}{
	{models.CategoryTreePlanting, models.CategoryCleanup, 1.15},
	{models.CategoryAwareness, models.CategoryRecycling, 1.10},
	{models.CategoryEnergySaving, models.CategoryAwareness, 1.12},
}

const (
	maxDiversityBonus   = 0.3
	maxEfficiencyUplift = 0.5
	maxConsistencyBonus = 0.2
	highImpactUplift    = 1.2
)

// CarbonFactor returns kg of CO2 attributed to one unit of the category
func CarbonFactor(c models.Category) float64 {
	return categoryCoefficients[c].carbonPerUnit
}

// ActivityInput describes one planned activity
type ActivityInput struct {
	Category      models.Category `json:"category"`
	Quantity      float64         `json:"quantity"`
	DurationHours float64         `json:"duration_hours"`
}

// UserContext is the part of a user's history that scales estimates.
// The zero value applies no adjustment.
type UserContext struct {
	ApprovedActivities int
	RecentActivities   int
}

// Multiplier is the experience multiplier times the consistency bonus
func (u UserContext) Multiplier() float64 {
	experience := 1.0
	switch {
	case u.ApprovedActivities >= 20:
		experience = 1.15
	case u.ApprovedActivities >= 10:
		experience = 1.1
	case u.ApprovedActivities >= 5:
		experience = 1.05
	}
	consistency := math.Min(maxConsistencyBonus, 0.02*float64(u.RecentActivities))
	return experience * (1 + consistency)
}

// Equivalents restates a CO2 figure in everyday terms
type Equivalents struct {
	TreesPlanted    float64 `json:"trees_planted"`
	CarMilesAvoided float64 `json:"car_miles_avoided"`
	LEDBulbYears    float64 `json:"led_bulb_years"`
	PlasticBottles  float64 `json:"plastic_bottles"`
}

// ImpactEstimate is the calculator's result for one activity
type ImpactEstimate struct {
	Category        models.Category `json:"category"`
	Quantity        float64         `json:"quantity"`
	DurationHours   float64         `json:"duration_hours"`
	CarbonKg        float64         `json:"carbon_kg"`
	BonusCarbonKg   float64         `json:"bonus_carbon_kg"`
	Points          int             `json:"points"`
	EfficiencyScore float64         `json:"efficiency_score"`
	ImpactLevel     string          `json:"impact_level"`
	Equivalents     Equivalents     `json:"equivalents"`
}

// CompoundEstimate is the calculator's result for several activities
type CompoundEstimate struct {
	Activities        []ImpactEstimate `json:"activities"`
	BaseCarbonKg      float64          `json:"base_carbon_kg"`
	CarbonKg          float64          `json:"carbon_kg"`
	BasePoints        int              `json:"base_points"`
	Points            int              `json:"points"`
	DiversityBonus    float64          `json:"diversity_bonus"`
	SynergyMultiplier float64          `json:"synergy_multiplier"`
	EfficiencyScore   float64          `json:"efficiency_score"`
	ImpactLevel       string           `json:"impact_level"`
	Equivalents       Equivalents      `json:"equivalents"`
}

// ValidateActivity rejects unknown categories and non-positive quantities
func ValidateActivity(in ActivityInput) error {
	if !in.Category.Valid() {
		return models.NewInputError("category", "unknown category %q", in.Category)
	}
	if in.Quantity <= 0 || math.IsNaN(in.Quantity) || math.IsInf(in.Quantity, 0) {
		return models.NewInputError("quantity", "must be a positive number")
	}
	if in.DurationHours < 0 || math.IsNaN(in.DurationHours) {
		return models.NewInputError("duration_hours", "must not be negative")
	}
	return nil
}

// CalculateActivity estimates the carbon and points for one activity
func CalculateActivity(in ActivityInput, uc UserContext) (ImpactEstimate, error) {
	if err := ValidateActivity(in); err != nil {
		return ImpactEstimate{}, err
	}

	co := categoryCoefficients[in.Category]
	scaled := in.Quantity * co.carbonPerUnit * co.complexity
	carbon := enhancedCarbon(in, scaled)
	points := smartPoints(in.Quantity*co.pointsMultiplier, carbon, co.highImpact)

	m := uc.Multiplier()
	carbon *= m
	points *= m

	return ImpactEstimate{
		Category:        in.Category,
		Quantity:        in.Quantity,
		DurationHours:   in.DurationHours,
		CarbonKg:        roundTo(carbon, 2),
		BonusCarbonKg:   roundTo((carbon/m)-scaled, 2),
		Points:          truncatePoints(points),
		EfficiencyScore: roundTo(points/math.Max(0.1, carbon), 2),
		ImpactLevel:     ImpactLevel(carbon),
		Equivalents:     equivalentsFor(carbon),
	}, nil
}

// enhancedCarbon adds the scale or effort bonus to the complexity-scaled carbon
func enhancedCarbon(in ActivityInput, scaled float64) float64 {
	switch in.Category {
	case models.CategoryTreePlanting:
		if in.Quantity >= 5 {
			return scaled + 10*(in.Quantity/5)
		}
	case models.CategoryRecycling:
		if in.Quantity >= 10 {
			return scaled + 0.5*in.Quantity
		}
	case models.CategoryCleanup:
		if in.Quantity >= 20 {
			return scaled + 0.3*in.Quantity
		}
	case models.CategoryAwareness:
		if in.DurationHours >= 2 {
			return scaled * 1.5
		}
	case models.CategoryEnergySaving:
		if in.Quantity >= 50 {
			return scaled + 0.2*in.Quantity
		}
	}
	return scaled
}

// smartPoints lifts base points by up to 50% for carbon-efficient activities
func smartPoints(base, carbon float64, highImpact bool) float64 {
	ratio := carbon / math.Max(1, base/10)
	points := base * (1 + math.Min(maxEfficiencyUplift, ratio*0.1))
	if highImpact {
		points *= highImpactUplift
	}
	return points
}

// truncatePoints drops the fraction, tolerating float error just below a
// whole number
func truncatePoints(points float64) int {
	return int(math.Floor(points + 1e-9))
}

// CalculateCompound estimates a set of activities, crediting category
// diversity and complementary pairs. Diversity counts in full for carbon
// and at half weight for points.
func CalculateCompound(items []ActivityInput, uc UserContext) (CompoundEstimate, error) {
	if len(items) == 0 {
		return CompoundEstimate{}, models.NewInputError("activities", "at least one activity is required")
	}

	out := CompoundEstimate{Activities: make([]ImpactEstimate, 0, len(items)), SynergyMultiplier: 1}
	present := make(map[models.Category]bool)
	for _, item := range items {
		est, err := CalculateActivity(item, uc)
		if err != nil {
			return CompoundEstimate{}, err
		}
		out.Activities = append(out.Activities, est)
		out.BaseCarbonKg += est.CarbonKg
		out.BasePoints += est.Points
		present[item.Category] = true
	}

	out.DiversityBonus = math.Min(maxDiversityBonus, 0.05*float64(len(present)))
	for _, s := range synergies {
		if present[s.a] && present[s.b] {
			out.SynergyMultiplier *= s.multiplier
		}
	}

	carbon := out.BaseCarbonKg * (1 + out.DiversityBonus) * out.SynergyMultiplier
	points := float64(out.BasePoints) * (1 + out.DiversityBonus*0.5) * out.SynergyMultiplier

	out.BaseCarbonKg = roundTo(out.BaseCarbonKg, 2)
	out.CarbonKg = roundTo(carbon, 2)
	out.Points = truncatePoints(points)
	out.EfficiencyScore = roundTo(points/math.Max(0.1, carbon), 2)
	out.SynergyMultiplier = roundTo(out.SynergyMultiplier, 4)
	out.ImpactLevel = ImpactLevel(carbon)
	out.Equivalents = equivalentsFor(carbon)
	return out, nil
}

// ImpactLevel buckets a CO2 figure into a named level
func ImpactLevel(carbonKg float64) string {
	switch {
	case carbonKg >= 50:
		return "transformational"
	case carbonKg >= 20:
		return "high"
	case carbonKg >= 10:
		return "moderate"
	case carbonKg >= 5:
		return "good"
	default:
		return "starting"
	}
}

func equivalentsFor(carbonKg float64) Equivalents {
	return Equivalents{
		TreesPlanted:    roundTo(carbonKg/22, 2),
		CarMilesAvoided: roundTo(carbonKg*2.31, 1),
		LEDBulbYears:    roundTo(carbonKg/0.1, 1),
		PlasticBottles:  math.Round(carbonKg / 0.04),
	}
}
