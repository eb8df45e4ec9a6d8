package aggregation

import (
	"context"
	"sort"
	"time"

	"github.com/kjannette/trahn-analytics/internal/models"
)

// Store runs a typed rollup query and returns buckets in the query's order,
// with Interval set from the query period.
type Store interface {
	FetchBuckets(ctx context.Context, q Query) ([]models.RollupBucket, error)
}

type VolumeQuery struct {
	Period    string
	Symbols   []string
	AssetType models.AssetType
	Limit     int
	Offset    int
}

type PriceTrendQuery struct {
	Symbols []string
	Start   time.Time
	End     time.Time
	Period  string
	Limit   int
	Offset  int
}

type VolatilityQuery struct {
	AssetType models.AssetType
	Period    string
	Limit     int
	Offset    int
}

type CompareQuery struct {
	Symbols []string
	Start   time.Time
	End     time.Time
	Period  string
}

// Layer turns analytics requests into rollup queries and maps the rows.
// It does no caching and no paging normalization.
type Layer struct {
	store Store
}

func NewLayer(store Store) *Layer {
	return &Layer{store: store}
}

func (l *Layer) VolumeStats(ctx context.Context, vq VolumeQuery) ([]models.VolumeStats, error) {
	period := ResolvePeriod(vq.Period)
	q := Query{
		Period:  period,
		Where:   filters(vq.Symbols, vq.AssetType),
		OrderBy: []Order{{Column: ColBucketStart, Desc: true}},
		Limit:   vq.Limit,
		Offset:  vq.Offset,
	}

	buckets, err := l.store.FetchBuckets(ctx, q)
	if err != nil {
		return nil, fail("volume_stats", err)
	}

	out := make([]models.VolumeStats, len(buckets))
	for i, b := range buckets {
		out[i] = models.VolumeStats{
			Symbol:      b.SymbolCode,
			AssetType:   b.AssetType,
			TimePeriod:  period.Label,
			StartTime:   b.BucketStart,
			EndTime:     b.BucketStart.Add(period.Interval),
			TotalVolume: b.TotalVolume,
			AvgVolume:   b.AvgVolume,
			MaxVolume:   b.MaxVolume,
			MinVolume:   b.MinVolume,
			RecordCount: b.RecordCount,
		}
	}
	return out, nil
}

func (l *Layer) PriceTrends(ctx context.Context, pq PriceTrendQuery) ([]models.PriceTrends, error) {
	if len(pq.Symbols) == 0 {
		return nil, fail("price_trends", ErrEmptySymbols)
	}
	period := ResolvePeriod(pq.Period)
	q := Query{
		Period: period,
		Where: []Predicate{
			SymbolIn(pq.Symbols),
			StartBetween{From: pq.Start, To: pq.End},
		},
		OrderBy: []Order{{Column: ColBucketStart, Desc: true}},
		Limit:   pq.Limit,
		Offset:  pq.Offset,
	}

	buckets, err := l.store.FetchBuckets(ctx, q)
	if err != nil {
		return nil, fail("price_trends", err)
	}

	out := make([]models.PriceTrends, len(buckets))
	for i, b := range buckets {
		out[i] = models.PriceTrends{
			Symbol:             b.SymbolCode,
			AssetType:          b.AssetType,
			TimePeriod:         period.Label,
			StartTime:          b.BucketStart,
			EndTime:            b.BucketStart.Add(period.Interval),
			OpenPrice:          b.FirstOpen,
			ClosePrice:         b.LastClose,
			HighPrice:          b.MaxHigh,
			LowPrice:           b.MinLow,
			AvgPrice:           b.AvgClose,
			PriceChange:        b.LastClose - b.FirstOpen,
			PriceChangePercent: ChangePercent(b.FirstOpen, b.LastClose),
			Volatility:         b.Volatility,
		}
	}
	return out, nil
}

// VolatilityMetrics reads every matching bucket in ascending order so the
// trailing window always sees its preceding buckets, then sorts and pages.
func (l *Layer) VolatilityMetrics(ctx context.Context, vq VolatilityQuery) ([]models.VolatilityMetrics, error) {
	period := ResolvePeriod(vq.Period)
	q := Query{
		Period: period,
		Where:  filters(nil, vq.AssetType),
		OrderBy: []Order{
			{Column: ColSymbol},
			{Column: ColBucketStart},
		},
	}

	buckets, err := l.store.FetchBuckets(ctx, q)
	if err != nil {
		return nil, fail("volatility_metrics", err)
	}

	out := RollingVolatility(buckets, period)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Volatility != out[j].Volatility {
			return out[i].Volatility > out[j].Volatility
		}
		return out[i].StartTime.After(out[j].StartTime)
	})

	return page(out, vq.Limit, vq.Offset), nil
}

// RollingVolatility computes per-bucket metrics with trailing averages over
// RollingBuckets buckets of the same symbol. Input order does not matter.
func RollingVolatility(buckets []models.RollupBucket, period Period) []models.VolatilityMetrics {
	sorted := append([]models.RollupBucket(nil), buckets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SymbolCode != sorted[j].SymbolCode {
			return sorted[i].SymbolCode < sorted[j].SymbolCode
		}
		return sorted[i].BucketStart.Before(sorted[j].BucketStart)
	})

	out := make([]models.VolatilityMetrics, 0, len(sorted))
	var (
		current string
		vol     *rollingMean
		swing   *rollingMean
	)
	for i, b := range sorted {
		if i == 0 || b.SymbolCode != current {
			current = b.SymbolCode
			vol = newRollingMean(RollingBuckets)
			swing = newRollingMean(RollingBuckets)
		}

		v, ok := 0.0, b.Volatility != nil
		if ok {
			v = *b.Volatility
		}

		out = append(out, models.VolatilityMetrics{
			Symbol:        b.SymbolCode,
			AssetType:     b.AssetType,
			TimePeriod:    period.Label,
			StartTime:     b.BucketStart,
			EndTime:       b.BucketStart.Add(period.Interval),
			Volatility:    v,
			AvgVolatility: vol.Push(v, ok),
			MaxPriceSwing: b.PriceSwing(),
			AvgPriceSwing: swing.Push(b.PriceSwing(), true),
			PriceRange:    models.PriceRange{Low: b.MinLow, High: b.MaxHigh},
		})
	}
	return out
}

func (l *Layer) CompareSymbols(ctx context.Context, cq CompareQuery) (*models.ComparisonResult, error) {
	period := ResolvePeriod(cq.Period)
	q := Query{
		Period: period,
		Where: []Predicate{
			SymbolIn(cq.Symbols),
			StartBetween{From: cq.Start, To: cq.End},
		},
		OrderBy: []Order{
			{Column: ColSymbol},
			{Column: ColBucketStart},
		},
	}

	buckets, err := l.store.FetchBuckets(ctx, q)
	if err != nil {
		return nil, fail("compare_symbols", err)
	}

	return &models.ComparisonResult{
		Symbols:     append([]string(nil), cq.Symbols...),
		StartTime:   cq.Start,
		EndTime:     cq.End,
		TimePeriod:  period.Label,
		Comparisons: Summarize(buckets),
	}, nil
}

// Summarize collapses each symbol's buckets into one comparison row, sorted
// by price change percent descending. Performance is left unset.
func Summarize(buckets []models.RollupBucket) []models.SymbolComparison {
	type acc struct {
		first, last models.RollupBucket
		volume      float64
		volSum      float64
		volN        int
		priceSum    float64
		n           int
	}
	bySymbol := make(map[string]*acc)
	var order []string

	for _, b := range buckets {
		a, ok := bySymbol[b.SymbolCode]
		if !ok {
			a = &acc{first: b, last: b}
			bySymbol[b.SymbolCode] = a
			order = append(order, b.SymbolCode)
		}
		if b.BucketStart.Before(a.first.BucketStart) {
			a.first = b
		}
		if !b.BucketStart.Before(a.last.BucketStart) {
			a.last = b
		}
		a.volume += b.TotalVolume
		a.priceSum += b.AvgClose
		a.n++
		if b.Volatility != nil {
			a.volSum += *b.Volatility
			a.volN++
		}
	}

	out := make([]models.SymbolComparison, 0, len(order))
	for _, sym := range order {
		a := bySymbol[sym]
		sc := models.SymbolComparison{
			Symbol:             sym,
			AssetType:          a.first.AssetType,
			PriceChangePercent: ChangePercent(a.first.FirstOpen, a.last.LastClose),
			VolumeTotal:        a.volume,
			AvgPrice:           a.priceSum / float64(a.n),
		}
		if a.volN > 0 {
			sc.AvgVolatility = a.volSum / float64(a.volN)
		}
		out = append(out, sc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PriceChangePercent > out[j].PriceChangePercent
	})
	return out
}

// ChangePercent is (to-from)/from*100, or exactly 0 when from <= 0.
func ChangePercent(from, to float64) float64 {
	if from <= 0 {
		return 0
	}
	return (to - from) / from * 100
}

// --- helpers ---

func filters(symbols []string, assetType models.AssetType) []Predicate {
	var ps []Predicate
	if assetType != "" {
		ps = append(ps, AssetTypeEq(assetType))
	}
	if len(symbols) > 0 {
		ps = append(ps, SymbolIn(symbols))
	}
	return ps
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
