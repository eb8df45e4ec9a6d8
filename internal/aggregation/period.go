package aggregation

import (
	"strings"
	"time"
)

type Granularity int

const (
	Hour Granularity = iota
	Day
	Week
)

func (g Granularity) String() string {
	switch g {
	case Hour:
		return "hour"
	case Week:
		return "week"
	default:
		return "day"
	}
}

// Period ties a requested period label to the rollup table that serves it.
type Period struct {
	Label       string
	Granularity Granularity
	Table       string
	Interval    time.Duration
}

var (
	Hourly = Period{Label: "hourly", Granularity: Hour, Table: "market_data_hourly", Interval: time.Hour}
	Daily  = Period{Label: "daily", Granularity: Day, Table: "market_data_daily", Interval: 24 * time.Hour}
	Weekly = Period{Label: "weekly", Granularity: Week, Table: "market_data_weekly", Interval: 7 * 24 * time.Hour}
)

// ResolvePeriod maps a period alias to its rollup. Matching is case-insensitive
// and anything unrecognized falls back to Daily.
func ResolvePeriod(s string) Period {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hourly", "1h":
		return Hourly
	case "weekly", "7d":
		return Weekly
	default:
		return Daily
	}
}
