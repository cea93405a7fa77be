// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or
// environment variables.
type Config struct {
	BotToken        string `mapstructure:"BOT_TOKEN"`
	AdminGroupID    int64  `mapstructure:"ADMIN_GROUP_ID"`
	ReviewsThreadID int64  `mapstructure:"REVIEWS_THREAD_ID"`
	OwnerID         int64  `mapstructure:"OWNER_ID"`

	DBPath      string `mapstructure:"DB_PATH"`
	StateDBPath string `mapstructure:"STATE_DB_PATH"`
	MirrorDSN   string `mapstructure:"MIRROR_DSN"`
	StaffConfig string `mapstructure:"STAFF_CONFIG"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	MetricsAddr        string  `mapstructure:"METRICS_ADDR"`
	BroadcastPerSecond float64 `mapstructure:"BROADCAST_PER_SECOND"`
}

// Load reads configuration from an optional config.yml plus environment
// variables.
func Load() (*Config, error) {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The config file is optional; environment variables alone are fine.
	_ = viper.ReadInConfig()

	viper.SetDefault("DB_PATH", "data/ticketline.db")
	viper.SetDefault("STATE_DB_PATH", "data/state.db")
	viper.SetDefault("STAFF_CONFIG", "")
	viper.SetDefault("MIRROR_DSN", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("METRICS_ADDR", ":9090")
	viper.SetDefault("BROADCAST_PER_SECOND", 25.0)
	viper.SetDefault("REVIEWS_THREAD_ID", 0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// Validate ensures that required configuration values are present.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if c.AdminGroupID == 0 {
		return errors.New("ADMIN_GROUP_ID is required")
	}
	if c.OwnerID == 0 {
		return errors.New("OWNER_ID is required")
	}
	if c.BroadcastPerSecond < 0 {
		return errors.New("BROADCAST_PER_SECOND must not be negative")
	}
	return nil
}
