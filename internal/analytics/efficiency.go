package analytics

import (
	"fmt"
	"math"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/osteele/liquid"
)

// EfficiencyInput is everything the analyzer needs for one user
type EfficiencyInput struct {
	UserPoints       int
	UserImpactKg     float64
	PlatformPoints   int64
	PlatformImpactKg float64
	ByCategory       map[models.Category]*models.CategoryTotals
	PopulationRatios []float64
}

// EfficiencyAssessment is the analyzer's verdict. UserRatio and
// WeakestCategory are nil when there is nothing to measure.
type EfficiencyAssessment struct {
	UserRatio            *float64
	PlatformAverageRatio float64
	Percentile           float64
	Tier                 models.PerformanceTier
	WeakestCategory      *models.Category
	Suggestion           string
}

// EfficiencyAnalyzer scores points earned per kg of CO2 impact. It never
// calls out to the generative service.
type EfficiencyAnalyzer struct {
	catalog *Catalog
}

// NewEfficiencyAnalyzer creates an analyzer that words suggestions from catalog
func NewEfficiencyAnalyzer(catalog *Catalog) *EfficiencyAnalyzer {
	return &EfficiencyAnalyzer{catalog: catalog}
}

// Ratio returns points per kg, or false when impact is zero
func Ratio(points, impactKg float64) (float64, bool) {
	if impactKg <= 0 {
		return 0, false
	}
	return points / impactKg, true
}

// Analyze benchmarks the user against the platform and picks a suggestion
func (a *EfficiencyAnalyzer) Analyze(in EfficiencyInput) (EfficiencyAssessment, error) {
	platformRatio, _ := Ratio(float64(in.PlatformPoints), in.PlatformImpactKg)
	out := EfficiencyAssessment{
		PlatformAverageRatio: platformRatio,
		Tier:                 models.TierNoData,
	}

	userRatio, ok := Ratio(float64(in.UserPoints), in.UserImpactKg)
	if !ok {
		out.Suggestion = a.catalog.efficiency.NoData
		return out, nil
	}
	out.UserRatio = &userRatio
	out.Percentile = Percentile(in.PopulationRatios, userRatio)
	out.Tier = PerformanceTierFor(userRatio, platformRatio, populationStdDev(in.PopulationRatios))
	out.WeakestCategory = WeakestCategory(in.ByCategory)

	if out.WeakestCategory == nil {
		out.Suggestion = a.catalog.efficiency.NoData
		return out, nil
	}

	weakest := *out.WeakestCategory
	totals := in.ByCategory[weakest]
	weakestRatio, _ := Ratio(float64(totals.Points), totals.ImpactKg)

	src := a.catalog.efficiency.Rules[out.Tier][weakest]
	suggestion, err := a.catalog.render("efficiency/"+string(out.Tier)+"/"+string(weakest), src, liquid.Bindings{
		"user_ratio":     fmt.Sprintf("%.2f", userRatio),
		"platform_ratio": fmt.Sprintf("%.2f", platformRatio),
		"weakest_ratio":  fmt.Sprintf("%.2f", weakestRatio),
		"category":       weakest.Label(),
		"top_share":      topShare(out.Percentile),
	})
	if err != nil {
		return EfficiencyAssessment{}, err
	}
	out.Suggestion = suggestion
	return out, nil
}

// Percentile returns the fraction of population at or below ratio
func Percentile(population []float64, ratio float64) float64 {
	if len(population) == 0 {
		return 0
	}
	atOrBelow := 0
	for _, r := range population {
		if r <= ratio {
			atOrBelow++
		}
	}
	return float64(atOrBelow) / float64(len(population))
}

// PerformanceTierFor places ratio against average plus or minus one
// standard deviation
func PerformanceTierFor(ratio, average, stdDev float64) models.PerformanceTier {
	switch {
	case ratio < average-stdDev:
		return models.TierBelowAverage
	case ratio > average+stdDev:
		return models.TierAboveAverage
	default:
		return models.TierAverage
	}
}

// WeakestCategory returns the category with the lowest points per kg among
// those with at least one record and measurable impact. Ties go to the
// earlier category.
func WeakestCategory(byCategory map[models.Category]*models.CategoryTotals) *models.Category {
	var weakest *models.Category
	lowest := math.Inf(1)
	for _, cat := range models.Categories {
		totals, ok := byCategory[cat]
		if !ok || totals.Count == 0 {
			continue
		}
		ratio, ok := Ratio(float64(totals.Points), totals.ImpactKg)
		if !ok {
			continue
		}
		if ratio < lowest {
			lowest = ratio
			c := cat
			weakest = &c
		}
	}
	return weakest
}

func topShare(percentile float64) int {
	share := int(math.Round((1 - percentile) * 100))
	if share < 1 {
		return 1
	}
	return share
}
