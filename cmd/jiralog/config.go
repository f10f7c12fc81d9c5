package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/opsmetrics/jiralog/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the jiralog configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a skeleton config file if one doesn't exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.CreateDefault(path); err != nil {
			return err
		}
		log.Printf("config file: %s", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
