package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-analytics/internal/aggregation"
)

var trendsFlags struct {
	symbols string
	window  string
	start   string
	end     string
	period  string
	limit   int
	offset  int
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "OHLC price trends for one or more symbols",
	Args:  cobra.NoArgs,
	RunE:  runTrends,
}

func init() {
	rootCmd.AddCommand(trendsCmd)
	f := trendsCmd.Flags()
	f.StringVar(&trendsFlags.symbols, "symbols", "", "comma-separated symbol codes (required)")
	f.StringVar(&trendsFlags.window, "window", "week", "range when --start/--end are not set")
	f.StringVar(&trendsFlags.start, "start", "", "range start, YYYY-MM-DD")
	f.StringVar(&trendsFlags.end, "end", "", "range end, YYYY-MM-DD")
	f.StringVar(&trendsFlags.period, "period", "", "hourly, daily or weekly (default from window)")
	f.IntVar(&trendsFlags.limit, "limit", 0, "page size")
	f.IntVar(&trendsFlags.offset, "offset", 0, "rows to skip")
	_ = trendsCmd.MarkFlagRequired("symbols")
}

func runTrends(cmd *cobra.Command, args []string) error {
	start, end, period, err := resolveRange(trendsFlags.window, trendsFlags.start, trendsFlags.end, trendsFlags.period)
	if err != nil {
		return err
	}
	out, err := engine.Orchestrator.TryPriceTrends(cmd.Context(), aggregation.PriceTrendQuery{
		Symbols: splitSymbols(trendsFlags.symbols),
		Start:   start,
		End:     end,
		Period:  period,
		Limit:   trendsFlags.limit,
		Offset:  trendsFlags.offset,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
