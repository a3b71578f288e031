package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodKey(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{at: time.Date(2024, 2, 14, 15, 0, 0, 0, time.UTC), want: "2024-W07"},
		{at: time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), want: "2025-W01"},
		{at: time.Date(2021, 1, 3, 12, 0, 0, 0, time.UTC), want: "2020-W53"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PeriodKey(tt.at), tt.at.String())
	}
}

func TestWeekBounds(t *testing.T) {
	at := time.Date(2024, 2, 14, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC), WeekStart(at))
	assert.Equal(t, time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC), WeekEnd(at))

	sunday := time.Date(2024, 2, 18, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC), WeekStart(sunday))
}

func TestParsePeriodKey(t *testing.T) {
	start, err := ParsePeriodKey("2024-W07")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC), start)

	start, err = ParsePeriodKey("2020-W53")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 12, 28, 0, 0, 0, 0, time.UTC), start)

	for _, bad := range []string{"2021-W53", "2024-W00", "2024-W7", "2024W07", "", "2024-W07x"} {
		_, err := ParsePeriodKey(bad)
		assert.Error(t, err, bad)
	}
}
