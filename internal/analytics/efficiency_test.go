package analytics

import (
	"testing"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := LoadCatalog()
	require.NoError(t, err)
	return catalog
}

func TestEfficiencyAnalyzer_AboveAverage(t *testing.T) {
	analyzer := NewEfficiencyAnalyzer(testCatalog(t))

	got, err := analyzer.Analyze(EfficiencyInput{
		UserPoints:       300,
		UserImpactKg:     150,
		PlatformPoints:   1500,
		PlatformImpactKg: 1000,
		ByCategory: map[models.Category]*models.CategoryTotals{
			models.CategoryRecycling: {Count: 4, Points: 200, ImpactKg: 60},
			models.CategoryCleanup:   {Count: 2, Points: 100, ImpactKg: 90},
		},
		PopulationRatios: []float64{1.4, 1.5, 1.6},
	})
	require.NoError(t, err)

	require.NotNil(t, got.UserRatio)
	assert.Equal(t, 2.0, *got.UserRatio)
	assert.Equal(t, 1.5, got.PlatformAverageRatio)
	assert.Equal(t, models.TierAboveAverage, got.Tier)
	assert.Equal(t, 1.0, got.Percentile)
	require.NotNil(t, got.WeakestCategory)
	assert.Equal(t, models.CategoryCleanup, *got.WeakestCategory)
	assert.Contains(t, got.Suggestion, "2.00 points per kg")
}

func TestEfficiencyAnalyzer_NoImpactIsSentinel(t *testing.T) {
	analyzer := NewEfficiencyAnalyzer(testCatalog(t))

	got, err := analyzer.Analyze(EfficiencyInput{
		UserPoints:       40,
		UserImpactKg:     0,
		PlatformPoints:   1500,
		PlatformImpactKg: 1000,
		PopulationRatios: []float64{1, 2},
	})
	require.NoError(t, err)

	assert.Nil(t, got.UserRatio)
	assert.Nil(t, got.WeakestCategory)
	assert.Equal(t, models.TierNoData, got.Tier)
	assert.Equal(t, 0.0, got.Percentile)
	assert.NotEmpty(t, got.Suggestion)
}

func TestEfficiencyAnalyzer_EveryTierAndCategoryHasCopy(t *testing.T) {
	analyzer := NewEfficiencyAnalyzer(testCatalog(t))

	tiers := map[models.PerformanceTier]int{
		models.TierBelowAverage: 10,
		models.TierAverage:      15,
		models.TierAboveAverage: 30,
	}
	for tier, points := range tiers {
		for _, cat := range models.Categories {
			got, err := analyzer.Analyze(EfficiencyInput{
				UserPoints:       points,
				UserImpactKg:     10,
				PlatformPoints:   150,
				PlatformImpactKg: 100,
				ByCategory: map[models.Category]*models.CategoryTotals{
					cat: {Count: 1, Points: points, ImpactKg: 10},
				},
			})
			require.NoError(t, err)
			assert.Equal(t, tier, got.Tier, "%s/%s", tier, cat)
			assert.NotContains(t, got.Suggestion, "{{", "%s/%s", tier, cat)
		}
	}
}

func TestRatio(t *testing.T) {
	ratio, ok := Ratio(300, 150)
	assert.True(t, ok)
	assert.Equal(t, 2.0, ratio)

	_, ok = Ratio(300, 0)
	assert.False(t, ok)
}

func TestPercentile(t *testing.T) {
	population := []float64{0.5, 1, 1.5, 2}

	assert.Equal(t, 0.0, Percentile(nil, 3))
	assert.Equal(t, 0.0, Percentile(population, 0.1))
	assert.Equal(t, 0.5, Percentile(population, 1))
	assert.Equal(t, 1.0, Percentile(population, 2))
}

func TestPerformanceTierFor(t *testing.T) {
	tests := []struct {
		ratio, avg, sd float64
		want           models.PerformanceTier
	}{
		{ratio: 2.0, avg: 1.5, sd: 0, want: models.TierAboveAverage},
		{ratio: 1.9, avg: 1.5, sd: 0.5, want: models.TierAverage},
		{ratio: 1.0, avg: 1.5, sd: 0.5, want: models.TierAverage},
		{ratio: 0.9, avg: 1.5, sd: 0.5, want: models.TierBelowAverage},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PerformanceTierFor(tt.ratio, tt.avg, tt.sd), "%+v", tt)
	}
}

func TestWeakestCategory_TieBreaksByEnumOrder(t *testing.T) {
	byCategory := map[models.Category]*models.CategoryTotals{
		models.CategoryEnergySaving: {Count: 2, Points: 10, ImpactKg: 10},
		models.CategoryRecycling:    {Count: 1, Points: 5, ImpactKg: 5},
		models.CategoryTreePlanting: {Count: 1, Points: 50, ImpactKg: 0},
	}

	got := WeakestCategory(byCategory)
	require.NotNil(t, got)
	assert.Equal(t, models.CategoryRecycling, *got)

	assert.Nil(t, WeakestCategory(nil))
}
