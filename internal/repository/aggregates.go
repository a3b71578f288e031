package repository

import "github.com/JonnyWalker81/ecotrack/backend/internal/models"

// userCategoryTotals is one (user, category) row of approved activity
type userCategoryTotals struct {
	UserID   string
	Category models.Category
	Count    int
	Points   int64
	ImpactKg float64
}

// buildAggregates folds per-user, per-category totals into platform
// aggregates. Users without approved records are not counted.
func buildAggregates(rows []userCategoryTotals) *models.PlatformAggregates {
	agg := &models.PlatformAggregates{
		PerCategoryFrequency: make(map[models.Category]float64, len(models.Categories)),
		PopulationRatios:     []float64{},
	}

	type userTotals struct {
		points int64
		impact float64
	}
	users := make(map[string]*userTotals)
	var order []string
	counts := make(map[models.Category]int)

	for _, row := range rows {
		if row.Count == 0 {
			continue
		}
		u, ok := users[row.UserID]
		if !ok {
			u = &userTotals{}
			users[row.UserID] = u
			order = append(order, row.UserID)
		}
		u.points += row.Points
		u.impact += row.ImpactKg
		counts[row.Category] += row.Count

		agg.TotalPoints += row.Points
		agg.TotalImpactKg += row.ImpactKg
	}

	agg.UserCount = len(users)
	for _, cat := range models.Categories {
		if agg.UserCount == 0 {
			agg.PerCategoryFrequency[cat] = 0
			continue
		}
		agg.PerCategoryFrequency[cat] = float64(counts[cat]) / float64(agg.UserCount)
	}
	for _, id := range order {
		u := users[id]
		if u.impact > 0 {
			agg.PopulationRatios = append(agg.PopulationRatios, float64(u.points)/u.impact)
		}
	}
	return agg
}

// totalsFromRecords groups approved records by user and category
func totalsFromRecords(records []models.ActivityRecord) []userCategoryTotals {
	type key struct {
		user string
		cat  models.Category
	}
	index := make(map[key]int)
	var rows []userCategoryTotals
	for _, r := range records {
		if !r.Approved {
			continue
		}
		k := key{r.UserID, r.Category}
		i, ok := index[k]
		if !ok {
			i = len(rows)
			index[k] = i
			rows = append(rows, userCategoryTotals{UserID: r.UserID, Category: r.Category})
		}
		rows[i].Count++
		rows[i].Points += int64(r.Points)
		rows[i].ImpactKg += r.ImpactKg
	}
	return rows
}
