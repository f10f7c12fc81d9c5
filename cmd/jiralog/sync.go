package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsmetrics/jiralog/internal/jira"
	"github.com/opsmetrics/jiralog/internal/sync"
)

var (
	syncProjects string
	syncDays     int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch updated issues from Jira and rebuild their status logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}

		projects := appConfig.Projects
		if syncProjects != "" {
			projects = strings.Split(syncProjects, ",")
		}
		days := appConfig.DayRange
		if syncDays > 0 {
			days = syncDays
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		client := jira.NewClient(appConfig)
		return sync.New(store, client).SyncIssues(cmd.Context(), projects, days)
	},
}

func init() {
	syncCmd.Flags().StringVarP(&syncProjects, "projects", "p", "", "comma separated projects to query (default from config)")
	syncCmd.Flags().IntVarP(&syncDays, "days", "z", 0, "days to look back (default from config)")
	rootCmd.AddCommand(syncCmd)
}
