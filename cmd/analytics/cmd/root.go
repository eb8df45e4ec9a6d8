package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-analytics/internal/app"
	"github.com/kjannette/trahn-analytics/internal/config"
	"github.com/kjannette/trahn-analytics/internal/logging"
	"github.com/kjannette/trahn-analytics/internal/models"
)

var (
	driver     string
	sqlitePath string
	logLevel   string

	engine *app.App
)

var rootCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Query market rollups from the command line",
	Long: `analytics runs the same reads as the REST API directly against the
rollup database and prints JSON.

Connection settings come from the environment (or .env) exactly as for the
server; --driver and --sqlite-path override them.

Examples:
  analytics volume --period hourly --symbols AAPL --asset-type stock
  analytics trends --symbols AAPL,MSFT --window month
  analytics compare --symbols AAPL,MSFT,GOOG --start 2024-01-01 --end 2024-03-31
  analytics --driver sqlite --sqlite-path ./rollups.db symbols`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if driver != "" {
			cfg.DBDriver = strings.ToLower(driver)
		}
		if sqlitePath != "" {
			cfg.SQLitePath = sqlitePath
		}
		if _, err := cfg.Validate(); err != nil {
			return err
		}

		log, err := logging.New(cmd.ErrOrStderr(), logLevel, "text")
		if err != nil {
			return err
		}
		engine, err = app.New(cfg, log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if engine != nil {
			engine.Close()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "rollup database driver: postgres or sqlite (default from DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "", "SQLite rollup database file (default from SQLITE_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")
}

// --- helpers ---

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseAssetType(raw string) (models.AssetType, error) {
	if raw == "" {
		return "", nil
	}
	at, ok := models.ParseAssetType(raw)
	if !ok {
		return "", fmt.Errorf("asset type must be one of stock, forex, crypto, got %q", raw)
	}
	return at, nil
}

// resolveRange returns the explicit range when both bounds are set, otherwise
// the named window's range and period.
func resolveRange(window, start, end, period string) (time.Time, time.Time, string, error) {
	w := engine.Orchestrator.Window(window)
	if period == "" {
		period = w.Period.Label
	}
	if start == "" && end == "" {
		return w.Start, w.End, period, nil
	}
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, "", fmt.Errorf("--start and --end must be given together")
	}
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return time.Time{}, time.Time{}, "", fmt.Errorf("--start: %w", err)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return time.Time{}, time.Time{}, "", fmt.Errorf("--end: %w", err)
	}
	return s, e, period, nil
}
