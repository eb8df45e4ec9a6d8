package analytics

import "github.com/kjannette/trahn-analytics/internal/models"

const (
	DefaultOutperformRatio   = 1.10
	DefaultUnderperformRatio = 0.90
)

// Classify labels each comparison against the mean price change percent of
// the batch: above out*mean is outperforming, below under*mean is
// underperforming, anything else is neutral. The slice is updated in place.
func Classify(rows []models.SymbolComparison, out, under float64) {
	if len(rows) == 0 {
		return
	}
	var sum float64
	for _, r := range rows {
		sum += r.PriceChangePercent
	}
	mean := sum / float64(len(rows))

	for i := range rows {
		switch pct := rows[i].PriceChangePercent; {
		case pct > out*mean:
			rows[i].Performance = models.Outperforming
		case pct < under*mean:
			rows[i].Performance = models.Underperforming
		default:
			rows[i].Performance = models.Neutral
		}
	}
}
