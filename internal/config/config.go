package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Slack    SlackConfig
	Weaviate WeaviateConfig
	Report   ReportConfig

	// Timezone is the channel timezone used for derived time fields and
	// report windows.
	Timezone string
}

// SlackConfig holds Slack-specific configuration
type SlackConfig struct {
	Token       string
	ChannelID   string
	ChannelName string
}

// WeaviateConfig holds storage-specific configuration
type WeaviateConfig struct {
	Scheme string
	Host   string
	APIKey string

	// Replicas is the replica count for channel indices, configurable
	// per environment.
	Replicas int
}

// ReportConfig holds rendering and dispatch configuration
type ReportConfig struct {
	OutputDir      string
	DashboardURL   string
	CaptureTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Slack: SlackConfig{
			Token:       getEnv("SLACK_BOT_TOKEN", ""),
			ChannelID:   getEnv("SLACK_CHANNEL_ID", ""),
			ChannelName: getEnv("SLACK_CHANNEL_NAME", ""),
		},
		Weaviate: WeaviateConfig{
			Scheme:   getEnv("WEAVIATE_SCHEME", "http"),
			Host:     getEnv("WEAVIATE_HOST", "localhost:8080"),
			APIKey:   getEnv("WEAVIATE_API_KEY", ""),
			Replicas: getEnvInt("STORAGE_REPLICAS", 1),
		},
		Report: ReportConfig{
			OutputDir:      getEnv("REPORT_OUTPUT_DIR", "./output"),
			DashboardURL:   getEnv("DASHBOARD_URL", ""),
			CaptureTimeout: time.Duration(getEnvInt("CAPTURE_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Timezone: getEnv("TIMEZONE", "Asia/Tokyo"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Slack.Token == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	if c.Slack.ChannelID == "" {
		return fmt.Errorf("SLACK_CHANNEL_ID is required")
	}

	if c.Weaviate.Host == "" {
		return fmt.Errorf("WEAVIATE_HOST is required")
	}
	if c.Weaviate.Scheme != "http" && c.Weaviate.Scheme != "https" {
		return fmt.Errorf("WEAVIATE_SCHEME must be http or https")
	}
	if c.Weaviate.Replicas < 1 {
		return fmt.Errorf("STORAGE_REPLICAS must be at least 1")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}

	return nil
}

// Location returns the configured channel timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a fallback default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
