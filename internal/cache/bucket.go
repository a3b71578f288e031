package cache

import (
	"strconv"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/analytics"
)

// Refresh is how often a feature's cached result rolls over
type Refresh int

const (
	RefreshWeekly Refresh = iota
	RefreshDaily
	RefreshFiveMinutes
)

const fiveMinutes = 5 * time.Minute

// Bucket returns the time bucket containing now and when it ends
func Bucket(r Refresh, now time.Time) (string, time.Time) {
	now = now.UTC()
	switch r {
	case RefreshDaily:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return day.Format("2006-01-02"), day.AddDate(0, 0, 1)
	case RefreshFiveMinutes:
		start := now.Truncate(fiveMinutes)
		return strconv.FormatInt(start.Unix()/int64(fiveMinutes/time.Second), 10), start.Add(fiveMinutes)
	default:
		return analytics.PeriodKey(now), analytics.WeekEnd(now)
	}
}

// KeyFor builds the cache key and TTL for a feature at now. The TTL runs
// to the end of the bucket.
func KeyFor(userID, feature string, r Refresh, now time.Time) (Key, time.Duration) {
	bucket, end := Bucket(r, now)
	ttl := end.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	return Key{UserID: userID, Feature: feature, Bucket: bucket}, ttl
}
