package config

import (
	"fmt"
	"os"

	"plex-observer/src/analysis"
	"plex-observer/src/models"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a Config from a YAML file, then applies PLEX_* environment
// variable overrides on top of the file values.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	// 3. Environment overrides win over file values
	if err := env.Parse(&modelConfig); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Storage is optional; when enabled it needs a usable target
	if c.Storage.Enabled {
		if c.Storage.DBType == "" {
			return fmt.Errorf("database type cannot be empty")
		}
		if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
		if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	}

	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if c.Upstream.HistoricalURL == "" && !c.Collector.Enabled {
		return fmt.Errorf("either an upstream historical URL or the collector must be configured")
	}
	if c.Upstream.LookbackDays <= 0 {
		return fmt.Errorf("lookback days must be greater than 0")
	}
	if c.Collector.Enabled {
		if c.Collector.OrdersURL == "" {
			return fmt.Errorf("collector orders URL cannot be empty")
		}
		if c.Collector.IntervalMinutes <= 0 {
			return fmt.Errorf("collector interval must be greater than 0")
		}
	}

	// Validate timeframe selector values
	if c.DefaultTimeframe != "" {
		if _, err := analysis.ParseTimeframe(c.DefaultTimeframe); err != nil {
			return fmt.Errorf("invalid default timeframe: %w", err)
		}
	}
	for i, tf := range c.Timeframes {
		if _, err := analysis.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("timeframe %d invalid: %w", i, err)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// DefaultTF resolves the configured default timeframe.
func (c *Config) DefaultTF() analysis.Timeframe {
	if c.DefaultTimeframe == "" {
		return analysis.DefaultTimeframe
	}
	tf, err := analysis.ParseTimeframe(c.DefaultTimeframe)
	if err != nil {
		return analysis.DefaultTimeframe
	}
	return tf
}

// -----------------------------------------------------------------------------

// TimeframeLabels returns the selector labels to expose over the API.
func (c *Config) TimeframeLabels() []string {
	if len(c.Timeframes) > 0 {
		return c.Timeframes
	}
	labels := make([]string, 0, len(analysis.Timeframes()))
	for _, tf := range analysis.Timeframes() {
		labels = append(labels, string(tf))
	}
	return labels
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
