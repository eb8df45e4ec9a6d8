package analytics

import (
	"fmt"
	"time"
)

// Limits bounds the breadth of a single request. A zero value for any field
// means that check is disabled.
type Limits struct {
	MaxSymbols int
	MaxRange   time.Duration
}

// Guard rejects requests that would fan out too wide against the store.
type Guard struct {
	limits Limits
}

func NewGuard(limits Limits) *Guard {
	return &Guard{limits: limits}
}

// CheckSymbols returns nil if n symbols are allowed in one request.
func (g *Guard) CheckSymbols(n int) error {
	if g == nil || g.limits.MaxSymbols <= 0 {
		return nil
	}
	if n > g.limits.MaxSymbols {
		return fmt.Errorf("%w: %d symbols exceeds max %d", ErrInvalidRequest, n, g.limits.MaxSymbols)
	}
	return nil
}

// CheckRange returns nil if [start, end] is ordered and within MaxRange.
func (g *Guard) CheckRange(start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRequest,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if g == nil || g.limits.MaxRange <= 0 {
		return nil
	}
	if span := end.Sub(start); span > g.limits.MaxRange {
		return fmt.Errorf("%w: range %s exceeds max %s", ErrInvalidRequest, span, g.limits.MaxRange)
	}
	return nil
}
