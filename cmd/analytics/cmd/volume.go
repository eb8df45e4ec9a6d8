package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-analytics/internal/aggregation"
	"github.com/kjannette/trahn-analytics/internal/models"
)

var volumeFlags struct {
	period    string
	window    string
	symbols   string
	assetType string
	limit     int
	offset    int
}

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Volume statistics per bucket, newest first",
	Long: `Volume statistics per rollup bucket, newest first.

With --window the window's period is used and default paging applies.`,
	Args: cobra.NoArgs,
	RunE: runVolume,
}

func init() {
	rootCmd.AddCommand(volumeCmd)
	f := volumeCmd.Flags()
	f.StringVar(&volumeFlags.period, "period", "daily", "hourly, daily or weekly")
	f.StringVar(&volumeFlags.window, "window", "", "today, week, month or quarter")
	f.StringVar(&volumeFlags.symbols, "symbols", "", "comma-separated symbol codes")
	f.StringVar(&volumeFlags.assetType, "asset-type", "", "stock, forex or crypto")
	f.IntVar(&volumeFlags.limit, "limit", 0, "page size (default from DEFAULT_PAGE_SIZE)")
	f.IntVar(&volumeFlags.offset, "offset", 0, "rows to skip")
}

func runVolume(cmd *cobra.Command, args []string) error {
	at, err := parseAssetType(volumeFlags.assetType)
	if err != nil {
		return err
	}
	symbols := splitSymbols(volumeFlags.symbols)

	var out []models.VolumeStats
	if volumeFlags.window != "" {
		out, err = engine.Orchestrator.TryVolumeStatsForWindow(cmd.Context(), volumeFlags.window, symbols, at)
	} else {
		out, err = engine.Orchestrator.TryVolumeStats(cmd.Context(), aggregation.VolumeQuery{
			Period:    volumeFlags.period,
			Symbols:   symbols,
			AssetType: at,
			Limit:     volumeFlags.limit,
			Offset:    volumeFlags.offset,
		})
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
