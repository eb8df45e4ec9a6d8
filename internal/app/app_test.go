package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-analytics/internal/aggregation"
	"github.com/kjannette/trahn-analytics/internal/config"
	"github.com/kjannette/trahn-analytics/internal/logging"
	"github.com/kjannette/trahn-analytics/internal/models"
	"github.com/kjannette/trahn-analytics/internal/repository"
	"github.com/kjannette/trahn-analytics/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.DBDriver = "sqlite"
	cfg.CacheMaxEntries = 100
	return cfg
}

func TestOpenStore_SQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "rollups.db")

	store, closeStore, err := OpenStore(cfg, logging.Discard())
	require.NoError(t, err)
	defer closeStore()
	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBDriver = "oracle"
	_, _, err := OpenStore(cfg, logging.Discard())
	assert.ErrorContains(t, err, "oracle")
}

func TestAssemble_ServesFromCacheAndExportsMetrics(t *testing.T) {
	cfg := testConfig(t)
	d := testutil.SetupSQLite(t)
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	testutil.SeedSQLite(t, d, "market_data_daily",
		testutil.Bucket("AAPL", models.AssetStock, start, 100, 110, 1000, nil))

	a := Assemble(cfg, repository.NewSQLiteRollupRepo(d, repository.Options{}), logging.Discard(), nil)
	defer a.Close()

	q := aggregation.VolumeQuery{Period: "daily", Symbols: []string{"AAPL"}}
	first := a.Orchestrator.VolumeStats(context.Background(), q)
	second := a.Orchestrator.VolumeStats(context.Background(), q)
	require.Len(t, first, 1)
	assert.Equal(t, first, second)

	stats := a.Orchestrator.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, 100, stats.MaxEntries)

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["analytics_cache_hits_total"])
	assert.True(t, names["go_goroutines"])

	assert.NoError(t, a.Ping(context.Background()))
}
