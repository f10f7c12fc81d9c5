package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsmetrics/jiralog/internal/jira"
)

var issueKey string

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Dump the raw API payload for one issue, for import debugging",
	RunE: func(cmd *cobra.Command, args []string) error {
		if issueKey == "" {
			return fmt.Errorf("please supply an issue to look up")
		}
		if err := loadConfig(); err != nil {
			return err
		}

		client := jira.NewClient(appConfig)
		body, err := client.SearchRaw(cmd.Context(), issueKey)
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	},
}

func init() {
	issueCmd.Flags().StringVarP(&issueKey, "issue", "i", "", "issue key to look up")
	rootCmd.AddCommand(issueCmd)
}
