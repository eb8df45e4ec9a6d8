package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kjannette/trahn-analytics/internal/aggregation"
)

func TestResolveWindow(t *testing.T) {
	at := time.Date(2024, 6, 12, 15, 30, 45, 500, time.UTC)
	truncated := at.Truncate(time.Second)
	day := 24 * time.Hour

	cases := []struct {
		name   string
		start  time.Time
		period aggregation.Period
		label  string
	}{
		{"today", time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC), aggregation.Hourly, "today"},
		{"TODAY", time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC), aggregation.Hourly, "today"},
		{"week", truncated.Add(-7 * day), aggregation.Daily, "week"},
		{"month", truncated.Add(-30 * day), aggregation.Daily, "month"},
		{"quarter", truncated.Add(-90 * day), aggregation.Weekly, "quarter"},
		{"year", truncated.Add(-7 * day), aggregation.Daily, "week"},
		{"", truncated.Add(-7 * day), aggregation.Daily, "week"},
	}
	for _, tc := range cases {
		w := ResolveWindow(tc.name, at)
		assert.Equal(t, tc.start, w.Start, tc.name)
		assert.Equal(t, truncated, w.End, tc.name)
		assert.Equal(t, tc.period, w.Period, tc.name)
		assert.Equal(t, tc.label, w.Name, tc.name)
	}
}

func TestResolveWindow_ConvertsToUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// 22:00 EST on the 11th is 03:00 UTC on the 12th
	w := ResolveWindow("today", time.Date(2024, 6, 11, 22, 0, 0, 0, est))
	assert.Equal(t, time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC), w.Start)
}
