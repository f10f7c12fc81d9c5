package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsmetrics/jiralog/internal/report"
)

var (
	reportName   string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a precomputed report from the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		rows, err := report.Generate(store, reportName, time.Now().UTC())
		if err != nil {
			return err
		}
		return report.Render(os.Stdout, reportFormat, rows)
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportName, "name", "n", "ops", "report to run")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "table", "output format: table, csv, or markdown")
	rootCmd.AddCommand(reportCmd)
}
