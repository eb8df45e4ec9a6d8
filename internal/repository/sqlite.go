package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kjannette/trahn-analytics/internal/aggregation"
	"github.com/kjannette/trahn-analytics/internal/models"
)

// SQLiteRollupRepo reads rollup buckets from a SQLite database where
// bucket_start is stored as unix seconds.
type SQLiteRollupRepo struct {
	db   *sql.DB
	opts Options
}

func NewSQLiteRollupRepo(db *sql.DB, opts Options) *SQLiteRollupRepo {
	return &SQLiteRollupRepo{db: db, opts: opts.withDefaults()}
}

func (r *SQLiteRollupRepo) FetchBuckets(ctx context.Context, q aggregation.Query) ([]models.RollupBucket, error) {
	query, args, err := q.Build(aggregation.SQLiteDialect)
	if err != nil {
		return nil, err
	}

	var out []models.RollupBucket
	start := time.Now()
	err = r.opts.run(ctx, sqliteTransient, func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = collectBuckets(rows, scanSQLiteBucket, q.Period.Interval)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.opts.Logger.Debug("[DB] rollup query",
		"table", q.Period.Table, "rows", len(out), "elapsed", time.Since(start))
	return out, nil
}

func (r *SQLiteRollupRepo) ListSymbols(ctx context.Context, assetType models.AssetType) ([]models.Symbol, error) {
	query := `SELECT code, asset_type_code FROM symbols`
	var args []any
	if assetType != "" {
		query += ` WHERE asset_type_code = ?`
		args = append(args, string(assetType))
	}
	query += ` ORDER BY code ASC`

	var out []models.Symbol
	err := r.opts.run(ctx, sqliteTransient, func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx, query, args...)
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

func (r *SQLiteRollupRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// --- scan helpers ---

func scanSQLiteBucket(row scannable) (models.RollupBucket, error) {
	var (
		b         models.RollupBucket
		assetType string
		startUnix int64
		vol       sql.NullFloat64
	)
	err := row.Scan(
		&b.SymbolCode, &assetType, &startUnix,
		&b.FirstOpen, &b.LastClose, &b.MaxHigh, &b.MinLow, &b.AvgClose,
		&b.TotalVolume, &b.AvgVolume, &b.MaxVolume, &b.MinVolume,
		&vol, &b.RecordCount,
	)
	if err != nil {
		return b, err
	}
	b.AssetType = models.AssetType(assetType)
	b.BucketStart = time.Unix(startUnix, 0).UTC()
	if vol.Valid {
		v := vol.Float64
		b.Volatility = &v
	}
	return b, nil
}

func sqliteTransient(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
