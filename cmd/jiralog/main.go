package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsmetrics/jiralog/internal/config"
	"github.com/opsmetrics/jiralog/internal/db"
)

var (
	cfgFile   string
	dbPath    string
	appConfig config.Config
	version   = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:           "jiralog",
	Short:         "Mirror Jira issues into a local SQLite database for status-timing reports",
	Long:          `jiralog incrementally mirrors Jira issues and their status transition history into a local SQLite database, then computes elapsed-time-in-status metrics for service-level reporting.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.jiralog.yaml)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "database to use (default from config)")
}

// loadConfig loads and validates configuration. Commands that need Jira
// access call this.
func loadConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	appConfig = cfg
	return nil
}

// openStore opens (and initializes) the local database. The caller closes it.
func openStore() (*db.DB, error) {
	path := dbPath
	if path == "" {
		path = appConfig.Database
	}
	if path == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		path = cfg.Database
	}

	store, err := db.New(path)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, err
	}

	log.Printf("writing to database: %s", path)
	return store, nil
}
