package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds Jira connection settings and sync defaults.
type Config struct {
	URL      string   `yaml:"url"       mapstructure:"url"`
	Email    string   `yaml:"email"     mapstructure:"email"`
	Token    string   `yaml:"api_token" mapstructure:"api_token"`
	Database string   `yaml:"database"  mapstructure:"database"`
	Projects []string `yaml:"projects"  mapstructure:"projects"`
	DayRange int      `yaml:"day_range" mapstructure:"day_range"`
}

// DefaultPath returns the default config file path (~/.jiralog.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jiralog.yaml"
	}
	return filepath.Join(home, ".jiralog.yaml")
}

// Load reads config from the YAML file and applies env var overrides.
// configPath may be empty to use the default path.
func Load(configPath string) (Config, error) {
	v := viper.New()

	if configPath == "" {
		configPath = DefaultPath()
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Env var overrides
	v.BindEnv("url", "JIRA_URL")
	v.BindEnv("email", "JIRA_EMAIL")
	v.BindEnv("api_token", "JIRA_TOKEN")
	v.BindEnv("database", "JIRALOG_DB")

	v.SetDefault("database", "jiralog.db")
	v.SetDefault("day_range", 35)

	// Read the config file (ignore "not found" errors so env vars still work)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the fields required for remote access are present.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("Jira URL is required (set in config file or JIRA_URL env var)")
	}
	if c.Email == "" {
		return fmt.Errorf("Jira email is required (set in config file or JIRA_EMAIL env var)")
	}
	if c.Token == "" {
		return fmt.Errorf("Jira API token is required (set in config file or JIRA_TOKEN env var)")
	}
	return nil
}

// Save writes the config to the given path (or default path if empty).
func Save(cfg Config, configPath string) error {
	if configPath == "" {
		configPath = DefaultPath()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateDefault writes a skeleton config file at the given path (or the
// default path if empty). An existing file is left untouched.
func CreateDefault(configPath string) error {
	if configPath == "" {
		configPath = DefaultPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return Save(Config{
		URL:      "https://example.atlassian.net",
		Email:    "",
		Database: "jiralog.db",
		Projects: []string{"EO"},
		DayRange: 35,
	}, configPath)
}
