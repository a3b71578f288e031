package repository

import (
	"testing"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildAggregates(t *testing.T) {
	tests := []struct {
		name       string
		records    []models.ActivityRecord
		users      int
		points     int64
		ratios     []float64
		recycleAvg float64
	}{
		{
			name:    "empty platform",
			records: nil,
			ratios:  []float64{},
		},
		{
			name: "unapproved records ignored",
			records: []models.ActivityRecord{
				{UserID: "u1", Category: models.CategoryRecycling, Points: 10, ImpactKg: 5, Approved: false},
			},
			ratios: []float64{},
		},
		{
			name: "two users",
			records: []models.ActivityRecord{
				{UserID: "u1", Category: models.CategoryRecycling, Points: 30, ImpactKg: 15, Approved: true},
				{UserID: "u1", Category: models.CategoryRecycling, Points: 30, ImpactKg: 15, Approved: true},
				{UserID: "u2", Category: models.CategoryAwareness, Points: 40, ImpactKg: 10, Approved: true},
			},
			users:      2,
			points:     100,
			ratios:     []float64{2, 4},
			recycleAvg: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := buildAggregates(totalsFromRecords(tt.records))
			assert.Equal(t, tt.users, agg.UserCount)
			assert.Equal(t, tt.points, agg.TotalPoints)
			assert.Equal(t, tt.ratios, agg.PopulationRatios)
			assert.InDelta(t, tt.recycleAvg, agg.PerCategoryFrequency[models.CategoryRecycling], 1e-9)
			assert.Len(t, agg.PerCategoryFrequency, len(models.Categories))
		})
	}
}
