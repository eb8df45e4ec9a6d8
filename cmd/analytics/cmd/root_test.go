package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-analytics/internal/models"
	"github.com/kjannette/trahn-analytics/internal/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "rollups.db")
	d := testutil.SetupSQLiteAt(t, path)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	testutil.SeedSQLite(t, d, "market_data_daily",
		testutil.Bucket("AAPL", models.AssetStock, day, 100, 120, 1000, nil),
		testutil.Bucket("MSFT", models.AssetStock, day, 100, 100, 500, nil),
		testutil.Bucket("ETH", models.AssetCrypto, day, 3000, 3000, 10, nil),
	)

	db := []string{"--driver", "sqlite", "--sqlite-path", path}

	t.Run("symbols", func(t *testing.T) {
		out, err := run(t, append(db, "symbols", "--asset-type", "crypto")...)
		require.NoError(t, err)
		var syms []models.Symbol
		require.NoError(t, json.Unmarshal([]byte(out), &syms))
		assert.Equal(t, []models.Symbol{{Code: "ETH", AssetType: models.AssetCrypto}}, syms)
	})

	t.Run("compare", func(t *testing.T) {
		out, err := run(t, append(db, "compare", "--symbols", "AAPL,MSFT", "--start", "2024-03-01", "--end", "2024-03-02")...)
		require.NoError(t, err)
		var res models.ComparisonResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		require.Len(t, res.Comparisons, 2)
		assert.Equal(t, "AAPL", res.Comparisons[0].Symbol)
		assert.Equal(t, models.Outperforming, res.Comparisons[0].Performance)
	})

	t.Run("invalid asset type", func(t *testing.T) {
		_, err := run(t, append(db, "volatility", "--asset-type", "bonds")...)
		assert.ErrorContains(t, err, "asset type")
	})

	t.Run("half range", func(t *testing.T) {
		_, err := run(t, append(db, "trends", "--symbols", "AAPL", "--start", "2024-03-01")...)
		assert.ErrorContains(t, err, "--start and --end")
	})
}

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, splitSymbols(" AAPL, ,MSFT,"))
	assert.Nil(t, splitSymbols(""))
}
