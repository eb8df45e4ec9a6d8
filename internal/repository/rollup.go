package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/trahn-analytics/internal/aggregation"
	"github.com/kjannette/trahn-analytics/internal/models"
)

// RollupRepo reads rollup buckets and symbols from PostgreSQL.
type RollupRepo struct {
	pool *pgxpool.Pool
	opts Options
}

func NewRollupRepo(pool *pgxpool.Pool, opts Options) *RollupRepo {
	return &RollupRepo{pool: pool, opts: opts.withDefaults()}
}

func (r *RollupRepo) FetchBuckets(ctx context.Context, q aggregation.Query) ([]models.RollupBucket, error) {
	query, args, err := q.Build(aggregation.PostgresDialect)
	if err != nil {
		return nil, err
	}

	var out []models.RollupBucket
	start := time.Now()
	err = r.opts.run(ctx, pgTransient, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = collectBuckets(rows, scanPgBucket, q.Period.Interval)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.opts.Logger.Debug("[DB] rollup query",
		"table", q.Period.Table, "rows", len(out), "elapsed", time.Since(start))
	return out, nil
}

// ListSymbols returns known symbols, optionally restricted to one asset type.
func (r *RollupRepo) ListSymbols(ctx context.Context, assetType models.AssetType) ([]models.Symbol, error) {
	query := `SELECT code, asset_type_code FROM symbols`
	var args []any
	if assetType != "" {
		query += ` WHERE asset_type_code = $1`
		args = append(args, string(assetType))
	}
	query += ` ORDER BY code ASC`

	var out []models.Symbol
	err := r.opts.run(ctx, pgTransient, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = collectSymbols(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return out, nil
}

func (r *RollupRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// --- scan helpers ---

func scanPgBucket(row scannable) (models.RollupBucket, error) {
	var b models.RollupBucket
	var assetType string
	err := row.Scan(
		&b.SymbolCode, &assetType, &b.BucketStart,
		&b.FirstOpen, &b.LastClose, &b.MaxHigh, &b.MinLow, &b.AvgClose,
		&b.TotalVolume, &b.AvgVolume, &b.MaxVolume, &b.MinVolume,
		&b.Volatility, &b.RecordCount,
	)
	if err != nil {
		return b, err
	}
	b.AssetType = models.AssetType(assetType)
	b.BucketStart = b.BucketStart.UTC()
	return b, nil
}

// pgTransient reports connection-level failures that are safe to repeat.
func pgTransient(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08": // connection exception
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01":
			return true
		}
		return false
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
