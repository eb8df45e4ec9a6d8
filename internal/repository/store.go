package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/kjannette/trahn-analytics/internal/models"
	"github.com/kjannette/trahn-analytics/internal/retry"
)

// Options controls how a rollup store runs each query.
type Options struct {
	// Timeout bounds a single attempt. Zero means no per-query timeout.
	Timeout time.Duration
	Retry   retry.Config
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Retry.Logger == nil {
		o.Retry.Logger = o.Logger
	}
	return o
}

// run executes one attempt of fn under the per-query timeout, retrying
// transient failures.
func (o Options) run(ctx context.Context, transient func(error) bool, fn func(ctx context.Context) error) error {
	cfg := o.Retry
	cfg.Retryable = transient
	return retry.Do(ctx, cfg, func(ctx context.Context) error {
		if o.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.Timeout)
			defer cancel()
		}
		return fn(ctx)
	})
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// bucketScanner reads one row in aggregation.BucketColumns order.
type bucketScanner func(row scannable) (models.RollupBucket, error)

func collectBuckets(rows rowsIter, scan bucketScanner, interval time.Duration) ([]models.RollupBucket, error) {
	out := []models.RollupBucket{}
	for rows.Next() {
		b, err := scan(rows)
		if err != nil {
			return nil, err
		}
		b.Interval = interval
		out = append(out, b)
	}
	return out, rows.Err()
}

func collectSymbols(rows rowsIter) ([]models.Symbol, error) {
	out := []models.Symbol{}
	for rows.Next() {
		var code, assetType string
		if err := rows.Scan(&code, &assetType); err != nil {
			return nil, err
		}
		out = append(out, models.Symbol{Code: code, AssetType: models.AssetType(assetType)})
	}
	return out, rows.Err()
}
