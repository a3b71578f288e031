package analytics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
)

const (
	// MaxHorizonDays is the longest forecast horizon accepted
	MaxHorizonDays = 365

	// Slopes within this band (kg/day per day) are reported as stable
	trendStableBand = 0.1
)

// ErrHorizonOutOfRange is returned for a horizon outside [1, MaxHorizonDays]
var ErrHorizonOutOfRange = errors.New("horizon_days must be between 1 and 365")

// DailyImpact is one point of a user's impact series
type DailyImpact struct {
	DayIndex int
	ImpactKg float64
}

// TrendForecast is the output of PredictTrend
type TrendForecast struct {
	DailyImpact       float64
	TotalImpact       float64
	WeeklyProjection  float64
	MonthlyProjection float64
	Confidence        float64
	Slope             float64
	Direction         models.TrendDirection
	SampleSize        int
}

// DailySeries buckets approved records by UTC calendar day, summing impact
// per day. DayIndex counts days since the earliest record.
func DailySeries(records []models.ActivityRecord) []DailyImpact {
	byDay := make(map[time.Time]float64)
	for _, r := range records {
		if !r.Approved {
			continue
		}
		t := r.Timestamp.UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		byDay[day] += r.ImpactKg
	}
	if len(byDay) == 0 {
		return nil
	}

	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	first := days[0]
	series := make([]DailyImpact, len(days))
	for i, d := range days {
		series[i] = DailyImpact{
			DayIndex: int(d.Sub(first).Hours() / 24),
			ImpactKg: byDay[d],
		}
	}
	return series
}

// ValidateHorizon checks that a forecast horizon is usable
func ValidateHorizon(horizonDays int) error {
	if horizonDays < 1 || horizonDays > MaxHorizonDays {
		return fmt.Errorf("%w: got %d", ErrHorizonOutOfRange, horizonDays)
	}
	return nil
}

// PredictTrend fits an ordinary least-squares line to series and projects
// it horizonDays past the last observation. Series must be ordered by
// DayIndex with no duplicate days.
func PredictTrend(series []DailyImpact, horizonDays int) (TrendForecast, error) {
	if err := ValidateHorizon(horizonDays); err != nil {
		return TrendForecast{}, err
	}

	ys := make([]float64, len(series))
	for i, p := range series {
		ys[i] = p.ImpactKg
	}

	// Too few points to extrapolate: hold the observed average flat
	if len(series) < 2 {
		avg := mean(ys)
		return TrendForecast{
			DailyImpact:       avg,
			TotalImpact:       avg * float64(horizonDays),
			WeeklyProjection:  avg * 7,
			MonthlyProjection: avg * 30,
			Confidence:        0,
			Slope:             0,
			Direction:         models.TrendStable,
			SampleSize:        len(series),
		}, nil
	}

	slope, intercept := linearRegression(series)
	confidence := trendConfidence(ys)
	if allEqual(ys) {
		// a flat series is perfectly predictable unless it is all zeros
		slope, intercept, confidence = 0, ys[0], 1
		if ys[0] == 0 {
			confidence = 0
		}
	}

	project := func(day int) float64 {
		v := intercept + slope*float64(day)
		if v < 0 {
			return 0
		}
		return v
	}
	sumAhead := func(last, days int) float64 {
		var total float64
		for d := 1; d <= days; d++ {
			total += project(last + d)
		}
		return total
	}

	last := series[len(series)-1].DayIndex
	return TrendForecast{
		DailyImpact:       project(last + horizonDays),
		TotalImpact:       sumAhead(last, horizonDays),
		WeeklyProjection:  sumAhead(last, 7),
		MonthlyProjection: sumAhead(last, 30),
		Confidence:        confidence,
		Slope:             slope,
		Direction:         trendDirection(slope),
		SampleSize:        len(series),
	}, nil
}

// linearRegression returns the least-squares slope and intercept
func linearRegression(series []DailyImpact) (slope, intercept float64) {
	n := float64(len(series))
	var sumX, sumY float64
	for _, p := range series {
		sumX += float64(p.DayIndex)
		sumY += p.ImpactKg
	}
	meanX, meanY := sumX/n, sumY/n

	var sxy, sxx float64
	for _, p := range series {
		dx := float64(p.DayIndex) - meanX
		sxy += dx * (p.ImpactKg - meanY)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0, meanY
	}
	slope = sxy / sxx
	return slope, meanY - slope*meanX
}

// trendConfidence is 1 - coefficient of variation, clamped to [0, 1]
func trendConfidence(ys []float64) float64 {
	m := mean(ys)
	if m == 0 {
		return 0
	}
	cv := populationStdDev(ys) / m
	return clamp(1-cv, 0, 1)
}

func trendDirection(slope float64) models.TrendDirection {
	switch {
	case slope > trendStableBand:
		return models.TrendIncreasing
	case slope < -trendStableBand:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}
