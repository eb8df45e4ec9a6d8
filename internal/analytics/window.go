package analytics

import (
	"strings"
	"time"

	"github.com/kjannette/trahn-analytics/internal/aggregation"
)

// Window is a resolved symbolic time window.
type Window struct {
	Name   string
	Start  time.Time
	End    time.Time
	Period aggregation.Period
}

// ResolveWindow maps a window name to a range ending at now. Unknown names
// resolve to "week".
//
//	today   -> start of the current UTC day, hourly
//	week    -> now-7d, daily
//	month   -> now-30d, daily
//	quarter -> now-90d, weekly
func ResolveWindow(name string, now time.Time) Window {
	now = now.UTC().Truncate(time.Second)
	const day = 24 * time.Hour

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "today":
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return Window{Name: "today", Start: start, End: now, Period: aggregation.Hourly}
	case "month":
		return Window{Name: "month", Start: now.Add(-30 * day), End: now, Period: aggregation.Daily}
	case "quarter":
		return Window{Name: "quarter", Start: now.Add(-90 * day), End: now, Period: aggregation.Weekly}
	default:
		return Window{Name: "week", Start: now.Add(-7 * day), End: now, Period: aggregation.Daily}
	}
}
