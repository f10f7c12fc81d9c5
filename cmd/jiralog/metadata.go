package main

import (
	"github.com/spf13/cobra"

	"github.com/opsmetrics/jiralog/internal/jira"
	"github.com/opsmetrics/jiralog/internal/sync"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Mirror the status, category, and field dictionaries from Jira",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		client := jira.NewClient(appConfig)
		return sync.New(store, client).SyncMetadata(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
}
