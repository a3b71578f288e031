package models

import (
	"fmt"
	"strings"
	"time"
)

// Category identifies the kind of eco-activity a record belongs to
type Category string

const (
	CategoryTreePlanting Category = "tree_planting"
	CategoryRecycling    Category = "recycling"
	CategoryCleanup      Category = "cleanup"
	CategoryAwareness    Category = "awareness"
	CategoryEnergySaving Category = "energy_saving"
)

// Categories lists every category in enum order. Tie-breaks across the
// engine use this order.
var Categories = []Category{
	CategoryTreePlanting,
	CategoryRecycling,
	CategoryCleanup,
	CategoryAwareness,
	CategoryEnergySaving,
}

// Index returns the enum position of the category, or -1 if unknown
func (c Category) Index() int {
	for i, cat := range Categories {
		if cat == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	return c.Index() >= 0
}

// Label returns a human-readable name ("energy saving")
func (c Category) Label() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

// ParseCategory converts a string to a Category, accepting the upper-case
// legacy activity codes (TREE, RECYCLE, ...) as well.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tree_planting", "tree":
		return CategoryTreePlanting, nil
	case "recycling", "recycle":
		return CategoryRecycling, nil
	case "cleanup":
		return CategoryCleanup, nil
	case "awareness":
		return CategoryAwareness, nil
	case "energy_saving":
		return CategoryEnergySaving, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ActivityRecord is an approved eco-activity submitted by a user.
// Records are owned by the activity-submission subsystem and read-only here.
type ActivityRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Category  Category  `json:"category"`
	Quantity  float64   `json:"quantity"`
	ImpactKg  float64   `json:"impact_kg"`
	Points    int       `json:"points"`
	Timestamp time.Time `json:"timestamp"`
	Approved  bool      `json:"approved"`
}

// PlatformAggregates summarises approved activity across all users
type PlatformAggregates struct {
	TotalPoints   int64   `json:"total_points"`
	TotalImpactKg float64 `json:"total_impact_kg"`
	UserCount     int     `json:"user_count"`
	// PerCategoryFrequency is the average number of approved records per
	// active user in each category.
	PerCategoryFrequency map[Category]float64 `json:"per_category_frequency"`
	// PopulationRatios holds points/impact_kg for every active user with
	// non-zero impact.
	PopulationRatios []float64 `json:"population_ratios"`
}

// CategoryTotals accumulates points and impact for one category
type CategoryTotals struct {
	Count    int     `json:"count"`
	Points   int     `json:"points"`
	ImpactKg float64 `json:"impact_kg"`
}

// ActivitySummary is the per-user rollup of an activity history
type ActivitySummary struct {
	TotalPoints   int                          `json:"total_points"`
	TotalImpactKg float64                      `json:"total_impact_kg"`
	ActivityCount int                          `json:"activity_count"`
	ByCategory    map[Category]*CategoryTotals `json:"by_category"`
}

// Summarize rolls approved records up into totals. Records that are not
// approved are ignored.
func Summarize(records []ActivityRecord) ActivitySummary {
	summary := ActivitySummary{ByCategory: make(map[Category]*CategoryTotals)}
	for _, r := range records {
		if !r.Approved {
			continue
		}
		summary.TotalPoints += r.Points
		summary.TotalImpactKg += r.ImpactKg
		summary.ActivityCount++

		totals, ok := summary.ByCategory[r.Category]
		if !ok {
			totals = &CategoryTotals{}
			summary.ByCategory[r.Category] = totals
		}
		totals.Count++
		totals.Points += r.Points
		totals.ImpactKg += r.ImpactKg
	}
	return summary
}

// Since returns the records with a timestamp at or after cutoff
func Since(records []ActivityRecord, cutoff time.Time) []ActivityRecord {
	out := make([]ActivityRecord, 0, len(records))
	for _, r := range records {
		if !r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}
