package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/trahn-analytics/internal/db"
	"github.com/kjannette/trahn-analytics/internal/models"
)

// RollupTables are the three fixed rollup tables, finest first.
var RollupTables = []string{"market_data_hourly", "market_data_daily", "market_data_weekly"}

const sqliteRollupDDL = `CREATE TABLE IF NOT EXISTS %s (
	symbol_code     TEXT    NOT NULL,
	asset_type_code TEXT    NOT NULL,
	bucket_start    INTEGER NOT NULL,
	first_open      REAL    NOT NULL,
	last_close      REAL    NOT NULL,
	max_high        REAL    NOT NULL,
	min_low         REAL    NOT NULL,
	avg_close       REAL    NOT NULL,
	total_volume    REAL    NOT NULL,
	avg_volume      REAL    NOT NULL,
	max_volume      REAL    NOT NULL,
	min_volume      REAL    NOT NULL,
	volatility      REAL,
	record_count    INTEGER NOT NULL,
	PRIMARY KEY (symbol_code, bucket_start)
)`

const pgRollupDDL = `CREATE TABLE IF NOT EXISTS %s (
	symbol_code     TEXT             NOT NULL,
	asset_type_code TEXT             NOT NULL,
	bucket_start    TIMESTAMPTZ      NOT NULL,
	first_open      DOUBLE PRECISION NOT NULL,
	last_close      DOUBLE PRECISION NOT NULL,
	max_high        DOUBLE PRECISION NOT NULL,
	min_low         DOUBLE PRECISION NOT NULL,
	avg_close       DOUBLE PRECISION NOT NULL,
	total_volume    DOUBLE PRECISION NOT NULL,
	avg_volume      DOUBLE PRECISION NOT NULL,
	max_volume      DOUBLE PRECISION NOT NULL,
	min_volume      DOUBLE PRECISION NOT NULL,
	volatility      DOUBLE PRECISION,
	record_count    BIGINT           NOT NULL,
	PRIMARY KEY (symbol_code, bucket_start)
)`

const symbolsDDL = `CREATE TABLE IF NOT EXISTS symbols (
	code            TEXT PRIMARY KEY,
	asset_type_code TEXT NOT NULL
)`

// SetupSQLite creates a fresh SQLite rollup database in a temp dir.
func SetupSQLite(t *testing.T) *sql.DB {
	t.Helper()
	return SetupSQLiteAt(t, filepath.Join(t.TempDir(), "rollups.db"))
}

// SetupSQLiteAt creates the rollup schema in the SQLite file at path.
func SetupSQLiteAt(t *testing.T, path string) *sql.DB {
	t.Helper()

	d, err := db.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	for _, table := range RollupTables {
		if _, err := d.Exec(fmt.Sprintf(sqliteRollupDDL, table)); err != nil {
			t.Fatalf("create %s: %v", table, err)
		}
	}
	if _, err := d.Exec(symbolsDDL); err != nil {
		t.Fatalf("create symbols: %v", err)
	}
	return d
}

// SeedSQLite inserts buckets into table and registers their symbols.
func SeedSQLite(t *testing.T, d *sql.DB, table string, buckets ...models.RollupBucket) {
	t.Helper()

	insert := `INSERT INTO ` + table + ` (symbol_code, asset_type_code, bucket_start,
		first_open, last_close, max_high, min_low, avg_close,
		total_volume, avg_volume, max_volume, min_volume, volatility, record_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, b := range buckets {
		var vol any
		if b.Volatility != nil {
			vol = *b.Volatility
		}
		_, err := d.Exec(insert,
			b.SymbolCode, string(b.AssetType), b.BucketStart.Unix(),
			b.FirstOpen, b.LastClose, b.MaxHigh, b.MinLow, b.AvgClose,
			b.TotalVolume, b.AvgVolume, b.MaxVolume, b.MinVolume, vol, b.RecordCount,
		)
		if err != nil {
			t.Fatalf("seed %s: %v", table, err)
		}
		if _, err := d.Exec(`INSERT OR IGNORE INTO symbols (code, asset_type_code) VALUES (?, ?)`,
			b.SymbolCode, string(b.AssetType)); err != nil {
			t.Fatalf("seed symbols: %v", err)
		}
	}
}

// SetupPostgresRollups creates the rollup tables if needed and returns a
// seeding function. Seeded symbols are deleted when the test ends.
func SetupPostgresRollups(t *testing.T, pool *pgxpool.Pool) func(table string, buckets ...models.RollupBucket) {
	t.Helper()
	ctx := context.Background()

	for _, table := range RollupTables {
		if _, err := pool.Exec(ctx, fmt.Sprintf(pgRollupDDL, table)); err != nil {
			t.Fatalf("create %s: %v", table, err)
		}
	}
	if _, err := pool.Exec(ctx, symbolsDDL); err != nil {
		t.Fatalf("create symbols: %v", err)
	}

	var seeded []string
	t.Cleanup(func() {
		if len(seeded) == 0 {
			return
		}
		for _, table := range RollupTables {
			_, _ = pool.Exec(ctx, `DELETE FROM `+table+` WHERE symbol_code = ANY($1)`, seeded)
		}
		_, _ = pool.Exec(ctx, `DELETE FROM symbols WHERE code = ANY($1)`, seeded)
	})

	return func(table string, buckets ...models.RollupBucket) {
		t.Helper()
		for _, b := range buckets {
			_, err := pool.Exec(ctx,
				`INSERT INTO `+table+` (symbol_code, asset_type_code, bucket_start,
				 first_open, last_close, max_high, min_low, avg_close,
				 total_volume, avg_volume, max_volume, min_volume, volatility, record_count)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
				b.SymbolCode, string(b.AssetType), b.BucketStart,
				b.FirstOpen, b.LastClose, b.MaxHigh, b.MinLow, b.AvgClose,
				b.TotalVolume, b.AvgVolume, b.MaxVolume, b.MinVolume, b.Volatility, b.RecordCount,
			)
			if err != nil {
				t.Fatalf("seed %s: %v", table, err)
			}
			_, err = pool.Exec(ctx,
				`INSERT INTO symbols (code, asset_type_code) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING`,
				b.SymbolCode, string(b.AssetType))
			if err != nil {
				t.Fatalf("seed symbols: %v", err)
			}
			seeded = append(seeded, b.SymbolCode)
		}
	}
}

// Bucket builds a rollup bucket with OHLC and volume fields derived from
// open, close and volume.
func Bucket(symbol string, assetType models.AssetType, start time.Time, open, close, volume float64, volatility *float64) models.RollupBucket {
	b := models.RollupBucket{
		SymbolCode:  symbol,
		AssetType:   assetType,
		FirstOpen:   open,
		LastClose:   close,
		MaxHigh:     max(open, close) * 1.01,
		MinLow:      min(open, close) * 0.99,
		AvgClose:    (open + close) / 2,
		TotalVolume: volume,
		AvgVolume:   volume / 10,
		MaxVolume:   volume / 5,
		MinVolume:   volume / 20,
		Volatility:  volatility,
		RecordCount: 10,
	}
	b.BucketStart = start.UTC()
	return b
}
