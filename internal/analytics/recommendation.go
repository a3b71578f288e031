package analytics

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/osteele/liquid"
)

// PointsPerUnit is the points credited per approved unit of activity
const PointsPerUnit = 10

// MaxPromptChars bounds enrichment prompts sent to the generative service
const MaxPromptChars = 1000

// baseQuantity is the weekly target for a beginner in each category
var baseQuantity = map[models.Category]int{
	models.CategoryTreePlanting: 3,
	models.CategoryRecycling:    5,
	models.CategoryCleanup:      10,
	models.CategoryAwareness:    2,
	models.CategoryEnergySaving: 20,
}

var levelFactor = map[models.Level]float64{
	models.LevelBeginner:     1.0,
	models.LevelNovice:       1.5,
	models.LevelIntermediate: 2.0,
	models.LevelExpert:       3.0,
}

// RecommendationInput is the per-user context for a recommendation
type RecommendationInput struct {
	Level             models.Level
	CategoryCounts    map[models.Category]int
	PlatformFrequency map[models.Category]float64
	RecentPoints      int
	RecentImpactKg    float64
}

// Recommendation is the deterministic next-action suggestion
type Recommendation struct {
	Category          models.Category
	GapScore          float64
	TargetQuantity    int
	ProjectedPoints   int
	ProjectedImpactKg float64
	Message           string
}

// RecommendationEngine ranks categories by how far the user trails the
// platform and words the top pick
type RecommendationEngine struct {
	catalog *Catalog
}

// NewRecommendationEngine creates an engine that words messages from catalog
func NewRecommendationEngine(catalog *Catalog) *RecommendationEngine {
	return &RecommendationEngine{catalog: catalog}
}

// Recommend picks the category with the largest positive coverage gap, or
// the highest impact-per-unit category when the user trails nowhere
func (e *RecommendationEngine) Recommend(in RecommendationInput) (Recommendation, error) {
	category, gap := PickCategory(in.CategoryCounts, in.PlatformFrequency)

	factor, ok := levelFactor[in.Level]
	if !ok {
		factor = 1.0
	}
	target := int(math.Ceil(float64(baseQuantity[category]) * factor))

	rec := Recommendation{
		Category:          category,
		GapScore:          gap,
		TargetQuantity:    target,
		ProjectedPoints:   target * PointsPerUnit,
		ProjectedImpactKg: roundTo(float64(target)*CarbonFactor(category), 2),
	}

	msg, err := e.message(rec, in.Level)
	if err != nil {
		return Recommendation{}, err
	}
	rec.Message = msg
	return rec, nil
}

// PickCategory returns the category with the highest positive gap between
// platform frequency and the user's own count. Ties go to the earlier
// category. Without a positive gap it falls back to the category with the
// largest carbon factor and a zero gap.
func PickCategory(counts map[models.Category]int, platform map[models.Category]float64) (models.Category, float64) {
	var (
		best    models.Category
		bestGap float64
	)
	for _, cat := range models.Categories {
		gap := platform[cat] - float64(counts[cat])
		if gap > bestGap {
			best, bestGap = cat, gap
		}
	}
	if bestGap > 0 {
		return best, bestGap
	}

	best = models.Categories[0]
	for _, cat := range models.Categories[1:] {
		if CarbonFactor(cat) > CarbonFactor(best) {
			best = cat
		}
	}
	return best, 0
}

func (e *RecommendationEngine) message(rec Recommendation, level models.Level) (string, error) {
	text := e.catalog.recommendations.Categories[rec.Category]
	action, err := e.catalog.render("recommendation/"+string(rec.Category), text.Action, liquid.Bindings{
		"target": rec.TargetQuantity,
		"impact": fmt.Sprintf("%.1f", rec.ProjectedImpactKg),
		"points": rec.ProjectedPoints,
	})
	if err != nil {
		return "", err
	}

	framing, ok := e.catalog.recommendations.Levels[level]
	if !ok {
		framing = e.catalog.recommendations.Levels[models.LevelBeginner]
		level = models.LevelBeginner
	}
	return e.catalog.render("recommendation/level/"+string(level), framing, liquid.Bindings{
		"headline": text.Headline,
		"action":   action,
	})
}

// RecommendationPrompt builds the bounded enrichment prompt for rec
func RecommendationPrompt(rec Recommendation, in RecommendationInput) string {
	var b strings.Builder
	b.WriteString("You are an encouraging campus sustainability coach. ")
	b.WriteString("Rewrite the suggestion below as one friendly paragraph of at most three sentences. ")
	b.WriteString("Keep every number unchanged and do not add new numbers.\n")
	fmt.Fprintf(&b, "Category: %s\n", rec.Category.Label())
	fmt.Fprintf(&b, "Coverage gap vs campus average: %.1f activities\n", rec.GapScore)
	fmt.Fprintf(&b, "Last 30 days: %d points, %.1f kg CO2\n", in.RecentPoints, in.RecentImpactKg)
	fmt.Fprintf(&b, "Level: %s\n", in.Level)
	fmt.Fprintf(&b, "Suggestion: %s", rec.Message)
	return truncatePrompt(b.String())
}

func truncatePrompt(s string) string {
	if len(s) <= MaxPromptChars {
		return s
	}
	// cut on a rune boundary
	cut := MaxPromptChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
