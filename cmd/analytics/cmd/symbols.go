package cmd

import (
	"github.com/spf13/cobra"
)

var symbolsAssetType string

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List known symbols",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseAssetType(symbolsAssetType)
		if err != nil {
			return err
		}
		out, err := engine.Orchestrator.TrySymbols(cmd.Context(), at)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
	symbolsCmd.Flags().StringVar(&symbolsAssetType, "asset-type", "", "stock, forex or crypto")
}
