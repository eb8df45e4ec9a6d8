package main

import (
	"os"

	"github.com/kjannette/trahn-analytics/cmd/analytics/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
