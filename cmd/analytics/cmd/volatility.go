package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-analytics/internal/aggregation"
)

var volatilityFlags struct {
	assetType string
	period    string
	limit     int
	offset    int
}

var volatilityCmd = &cobra.Command{
	Use:   "volatility",
	Short: "Most volatile buckets with trailing averages",
	Args:  cobra.NoArgs,
	RunE:  runVolatility,
}

func init() {
	rootCmd.AddCommand(volatilityCmd)
	f := volatilityCmd.Flags()
	f.StringVar(&volatilityFlags.assetType, "asset-type", "", "stock, forex or crypto")
	f.StringVar(&volatilityFlags.period, "period", "daily", "hourly, daily or weekly")
	f.IntVar(&volatilityFlags.limit, "limit", 20, "page size")
	f.IntVar(&volatilityFlags.offset, "offset", 0, "rows to skip")
}

func runVolatility(cmd *cobra.Command, args []string) error {
	at, err := parseAssetType(volatilityFlags.assetType)
	if err != nil {
		return err
	}
	out, err := engine.Orchestrator.TryVolatilityMetrics(cmd.Context(), aggregation.VolatilityQuery{
		AssetType: at,
		Period:    volatilityFlags.period,
		Limit:     volatilityFlags.limit,
		Offset:    volatilityFlags.offset,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
