package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-analytics/internal/aggregation"
)

var compareFlags struct {
	symbols string
	window  string
	start   string
	end     string
	period  string
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two or more symbols over a range",
	Long: `Compare two or more symbols over a range. Each symbol is labelled
outperforming, neutral or underperforming relative to the group mean.`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	f := compareCmd.Flags()
	f.StringVar(&compareFlags.symbols, "symbols", "", "comma-separated symbol codes, at least two (required)")
	f.StringVar(&compareFlags.window, "window", "week", "range when --start/--end are not set")
	f.StringVar(&compareFlags.start, "start", "", "range start, YYYY-MM-DD")
	f.StringVar(&compareFlags.end, "end", "", "range end, YYYY-MM-DD")
	f.StringVar(&compareFlags.period, "period", "", "hourly, daily or weekly (default from window)")
	_ = compareCmd.MarkFlagRequired("symbols")
}

func runCompare(cmd *cobra.Command, args []string) error {
	start, end, period, err := resolveRange(compareFlags.window, compareFlags.start, compareFlags.end, compareFlags.period)
	if err != nil {
		return err
	}
	res, err := engine.Orchestrator.TryCompareSymbols(cmd.Context(), aggregation.CompareQuery{
		Symbols: splitSymbols(compareFlags.symbols),
		Start:   start,
		End:     end,
		Period:  period,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}
