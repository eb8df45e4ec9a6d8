package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kjannette/trahn-analytics/internal/aggregation"
	"github.com/kjannette/trahn-analytics/internal/cache"
	"github.com/kjannette/trahn-analytics/internal/models"
)

// ErrInvalidRequest marks a request that cannot be answered as asked, such
// as an empty symbol set for trends or fewer than two symbols to compare.
var ErrInvalidRequest = errors.New("invalid request")

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Store is the rollup store as seen by the orchestrator.
type Store interface {
	aggregation.Store
	ListSymbols(ctx context.Context, assetType models.AssetType) ([]models.Symbol, error)
}

// FailureReporter is told about every degraded (fail-soft) response.
type FailureReporter interface {
	Report(op string, err error)
}

type Config struct {
	DefaultLimit      int
	MaxLimit          int
	OutperformRatio   float64
	UnderperformRatio float64
	Limits            Limits
	// Now is the clock used to resolve symbolic windows. Defaults to time.Now.
	Now func() time.Time
}

type Deps struct {
	Store    Store
	Cache    *cache.Cache // nil disables result caching
	Logger   *slog.Logger
	Reporter FailureReporter
	Metrics  prometheus.Registerer
}

// Orchestrator is the public entry point for analytics reads. Each read has
// a Try form returning the underlying error and a fail-soft form that logs,
// counts and reports the error and returns an empty result instead.
type Orchestrator struct {
	cfg      Config
	layer    *aggregation.Layer
	store    Store
	cache    *cache.Cache
	guard    *Guard
	log      *slog.Logger
	reporter FailureReporter
	failures *prometheus.CounterVec
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	if cfg.OutperformRatio == 0 {
		cfg.OutperformRatio = DefaultOutperformRatio
	}
	if cfg.UnderperformRatio == 0 {
		cfg.UnderperformRatio = DefaultUnderperformRatio
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Orchestrator{
		cfg:      cfg,
		layer:    aggregation.NewLayer(deps.Store),
		store:    deps.Store,
		cache:    deps.Cache,
		guard:    NewGuard(cfg.Limits),
		log:      log.With("component", "analytics"),
		reporter: deps.Reporter,
		failures: promauto.With(deps.Metrics).NewCounterVec(prometheus.CounterOpts{
			Namespace: "analytics",
			Name:      "query_failures_total",
			Help:      "Analytics reads that degraded to an empty result because the rollup store failed.",
		}, []string{"operation"}),
	}
}

// NormalizePage clamps limit into [1, MaxLimit] (non-positive becomes the
// default) and offset to be non-negative.
func (o *Orchestrator) NormalizePage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = o.cfg.DefaultLimit
	case limit > o.cfg.MaxLimit:
		limit = o.cfg.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (o *Orchestrator) Window(name string) Window {
	return ResolveWindow(name, o.cfg.Now())
}

// ---------- volume ----------

func (o *Orchestrator) TryVolumeStats(ctx context.Context, q aggregation.VolumeQuery) ([]models.VolumeStats, error) {
	q.Symbols = cleanSymbols(q.Symbols)
	q.Limit, q.Offset = o.NormalizePage(q.Limit, q.Offset)
	if err := o.guard.CheckSymbols(len(q.Symbols)); err != nil {
		return []models.VolumeStats{}, err
	}

	key := cacheKey("volume_stats",
		aggregation.ResolvePeriod(q.Period).Label, symbolsKey(q.Symbols), assetKey(q.AssetType),
		intKey(q.Limit), intKey(q.Offset))
	return cached(ctx, o, key, copyVolumeStats, func(ctx context.Context) ([]models.VolumeStats, error) {
		return o.layer.VolumeStats(ctx, q)
	})
}

func (o *Orchestrator) VolumeStats(ctx context.Context, q aggregation.VolumeQuery) []models.VolumeStats {
	out, err := o.TryVolumeStats(ctx, q)
	if err != nil {
		o.degrade("volume_stats", err)
		return []models.VolumeStats{}
	}
	return out
}

// TryVolumeStatsForWindow resolves the window and forwards only its period.
// The window's start and end are not applied as a row filter.
func (o *Orchestrator) TryVolumeStatsForWindow(ctx context.Context, window string, symbols []string, assetType models.AssetType) ([]models.VolumeStats, error) {
	w := o.Window(window)
	return o.TryVolumeStats(ctx, aggregation.VolumeQuery{
		Period:    w.Period.Label,
		Symbols:   symbols,
		AssetType: assetType,
	})
}

func (o *Orchestrator) VolumeStatsForWindow(ctx context.Context, window string, symbols []string, assetType models.AssetType) []models.VolumeStats {
	out, err := o.TryVolumeStatsForWindow(ctx, window, symbols, assetType)
	if err != nil {
		o.degrade("volume_stats", err)
		return []models.VolumeStats{}
	}
	return out
}

// ---------- price trends ----------

func (o *Orchestrator) TryPriceTrends(ctx context.Context, q aggregation.PriceTrendQuery) ([]models.PriceTrends, error) {
	q.Symbols = cleanSymbols(q.Symbols)
	if len(q.Symbols) == 0 {
		return []models.PriceTrends{}, fmt.Errorf("%w: price trends need at least one symbol", ErrInvalidRequest)
	}
	if err := o.guard.CheckSymbols(len(q.Symbols)); err != nil {
		return []models.PriceTrends{}, err
	}
	if err := o.guard.CheckRange(q.Start, q.End); err != nil {
		return []models.PriceTrends{}, err
	}
	q.Limit, q.Offset = o.NormalizePage(q.Limit, q.Offset)

	key := cacheKey("price_trends",
		aggregation.ResolvePeriod(q.Period).Label, symbolsKey(q.Symbols),
		timeKey(q.Start), timeKey(q.End), intKey(q.Limit), intKey(q.Offset))
	return cached(ctx, o, key, copyPriceTrends, func(ctx context.Context) ([]models.PriceTrends, error) {
		return o.layer.PriceTrends(ctx, q)
	})
}

func (o *Orchestrator) PriceTrends(ctx context.Context, q aggregation.PriceTrendQuery) []models.PriceTrends {
	out, err := o.TryPriceTrends(ctx, q)
	if err != nil {
		o.degrade("price_trends", err)
		return []models.PriceTrends{}
	}
	return out
}

// ---------- volatility ----------

func (o *Orchestrator) TryVolatilityMetrics(ctx context.Context, q aggregation.VolatilityQuery) ([]models.VolatilityMetrics, error) {
	q.Limit, q.Offset = o.NormalizePage(q.Limit, q.Offset)

	key := cacheKey("volatility_metrics",
		aggregation.ResolvePeriod(q.Period).Label, assetKey(q.AssetType),
		intKey(q.Limit), intKey(q.Offset))
	return cached(ctx, o, key, copySlice[models.VolatilityMetrics], func(ctx context.Context) ([]models.VolatilityMetrics, error) {
		return o.layer.VolatilityMetrics(ctx, q)
	})
}

func (o *Orchestrator) VolatilityMetrics(ctx context.Context, q aggregation.VolatilityQuery) []models.VolatilityMetrics {
	out, err := o.TryVolatilityMetrics(ctx, q)
	if err != nil {
		o.degrade("volatility_metrics", err)
		return []models.VolatilityMetrics{}
	}
	return out
}

// ---------- comparison ----------

// TryCompareSymbols returns nil and ErrInvalidRequest for fewer than two
// distinct symbols without touching the store.
func (o *Orchestrator) TryCompareSymbols(ctx context.Context, q aggregation.CompareQuery) (*models.ComparisonResult, error) {
	q.Symbols = cleanSymbols(q.Symbols)
	if len(q.Symbols) < 2 {
		return nil, fmt.Errorf("%w: comparison needs at least two symbols, got %d", ErrInvalidRequest, len(q.Symbols))
	}
	if err := o.guard.CheckSymbols(len(q.Symbols)); err != nil {
		return nil, err
	}
	if err := o.guard.CheckRange(q.Start, q.End); err != nil {
		return nil, err
	}

	key := cacheKey("compare_symbols",
		aggregation.ResolvePeriod(q.Period).Label, symbolsKey(q.Symbols),
		timeKey(q.Start), timeKey(q.End))
	res, err := cached(ctx, o, key, (*models.ComparisonResult).Clone, func(ctx context.Context) (*models.ComparisonResult, error) {
		res, err := o.layer.CompareSymbols(ctx, q)
		if err != nil {
			return nil, err
		}
		Classify(res.Comparisons, o.cfg.OutperformRatio, o.cfg.UnderperformRatio)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	// the key ignores symbol order; echo the caller's order
	res.Symbols = q.Symbols
	return res, nil
}

// CompareSymbols returns nil for fewer than two symbols or on failure.
func (o *Orchestrator) CompareSymbols(ctx context.Context, q aggregation.CompareQuery) *models.ComparisonResult {
	res, err := o.TryCompareSymbols(ctx, q)
	if err != nil {
		o.degrade("compare_symbols", err)
		return nil
	}
	return res
}

// TryCompareWindow compares symbols over a named window.
func (o *Orchestrator) TryCompareWindow(ctx context.Context, window string, symbols []string) (*models.ComparisonResult, error) {
	w := o.Window(window)
	return o.TryCompareSymbols(ctx, aggregation.CompareQuery{
		Symbols: symbols,
		Start:   w.Start,
		End:     w.End,
		Period:  w.Period.Label,
	})
}

// ---------- symbols ----------

func (o *Orchestrator) TrySymbols(ctx context.Context, assetType models.AssetType) ([]models.Symbol, error) {
	return cached(ctx, o, cacheKey("symbols", assetKey(assetType)), copySlice[models.Symbol], func(ctx context.Context) ([]models.Symbol, error) {
		out, err := o.store.ListSymbols(ctx, assetType)
		if err != nil {
			return nil, &aggregation.QueryFailure{Op: "symbols", Err: err}
		}
		return out, nil
	})
}

func (o *Orchestrator) Symbols(ctx context.Context, assetType models.AssetType) []models.Symbol {
	out, err := o.TrySymbols(ctx, assetType)
	if err != nil {
		o.degrade("symbols", err)
		return []models.Symbol{}
	}
	return out
}

// ---------- cache admin ----------

// InvalidateCache drops every cached result. Loads already running keep
// serving their callers but are not written back.
func (o *Orchestrator) InvalidateCache() {
	if o.cache == nil {
		return
	}
	o.cache.Clear()
	o.log.Info("[CACHE] cleared")
}

func (o *Orchestrator) CacheStats() cache.Stats {
	if o.cache == nil {
		return cache.Stats{}
	}
	return o.cache.Stats()
}

// RecordFailure logs, counts and reports err the same way a fail-soft read
// does. Callers using the Try forms use it before degrading on their own.
func (o *Orchestrator) RecordFailure(op string, err error) {
	o.degrade(op, err)
}

// --- helpers ---

// degrade records a failure behind a fail-soft response. Invalid requests
// and callers that went away are expected and only logged at debug level.
func (o *Orchestrator) degrade(op string, err error) {
	if errors.Is(err, ErrInvalidRequest) {
		o.log.Debug("[ANALYTICS] rejected request", "operation", op, "error", err)
		return
	}
	if errors.Is(err, context.Canceled) {
		o.log.Debug("[ANALYTICS] caller canceled", "operation", op)
		return
	}

	attrs := []any{"operation", op, "error", err}
	var qf *aggregation.QueryFailure
	if errors.As(err, &qf) {
		attrs = append(attrs, "timeout", qf.Timeout())
	}
	o.log.Error("[ANALYTICS] query failed, returning empty result", attrs...)
	o.failures.WithLabelValues(op).Inc()
	if o.reporter != nil {
		o.reporter.Report(op, err)
	}
}

// cached reads key through the result cache. Concurrent misses on one key
// share a single computation. A cached value of the wrong type is a cache
// fault: it is dropped and the result computed directly. Every returned
// value is a copy the caller owns. A shared computation outlives any one
// caller's cancellation; ctx only bounds how long this caller waits.
func cached[T any](ctx context.Context, o *Orchestrator, key string, clone func(T) T, compute func(ctx context.Context) (T, error)) (T, error) {
	if o.cache == nil {
		return compute(ctx)
	}

	v, hit, err := o.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		o.cacheFault(&cache.Fault{Op: "get", Key: key, Err: fmt.Errorf("unexpected value type %T", v)})
		o.cache.Delete(key)
		return compute(ctx)
	}
	if hit {
		o.log.Debug("[CACHE] hit", "key", key)
	}
	return clone(t), nil
}

func (o *Orchestrator) cacheFault(f *cache.Fault) {
	o.log.Warn("[CACHE] fault, computing directly", "operation", f.Op, "key", f.Key, "error", f.Err)
}

func copySlice[T any](in []T) []T {
	return append(make([]T, 0, len(in)), in...)
}

func copyVolumeStats(in []models.VolumeStats) []models.VolumeStats {
	out := copySlice(in)
	for i := range out {
		out[i].VolumeChangePercent = copyFloat(out[i].VolumeChangePercent)
	}
	return out
}

func copyPriceTrends(in []models.PriceTrends) []models.PriceTrends {
	out := copySlice(in)
	for i := range out {
		out[i].Volatility = copyFloat(out[i].Volatility)
	}
	return out
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
