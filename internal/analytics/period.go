package analytics

import (
	"fmt"
	"time"
)

// PeriodKey returns the ISO year-week identifier for t, e.g. "2024-W07"
func PeriodKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// WeekStart returns Monday 00:00 UTC of the ISO week containing t
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekEnd returns the exclusive end of the ISO week containing t
func WeekEnd(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 7)
}

// ParsePeriodKey returns the start of the ISO week named by key
func ParsePeriodKey(key string) (time.Time, error) {
	var year, week int
	if _, err := fmt.Sscanf(key, "%4d-W%2d", &year, &week); err != nil {
		return time.Time{}, fmt.Errorf("invalid period key %q: %w", key, err)
	}
	if week < 1 || week > 53 {
		return time.Time{}, fmt.Errorf("invalid period key %q: week out of range", key)
	}

	// January 4th always falls in ISO week 1
	start := WeekStart(time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)).AddDate(0, 0, (week-1)*7)
	if PeriodKey(start) != key {
		return time.Time{}, fmt.Errorf("invalid period key %q: year has no such week", key)
	}
	return start, nil
}
