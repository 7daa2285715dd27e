// Command hourly fits hourly baseline models from local CSV files.
//
// Usage:
//
//	hourly predict --usage usage.csv --temperature temp.csv --date 2018-07-30 --hours 16-20
//	hourly predict --usage bldg.csv --resstock-loads --state NY --county G3600610 --date 2018-07-30
//	hourly backtest --usage usage.csv --temperature temp.csv --from 2018-07-01 --to 2018-07-31
package main

import (
	"os"

	_ "time/tzdata"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "hourly",
		Short:         "Fit hourly baseline models and evaluate reporting-day savings",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(backtestCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
