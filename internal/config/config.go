package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	Marketplace MarketplaceConfig
	KVPath      string // SQLite file for the persisted key-value capability
	BranchID    string // optional; normally stored by login
}

// MarketplaceConfig points the gateway and the realtime channel at the
// hosted marketplace
type MarketplaceConfig struct {
	APIBaseURL  string // e.g. https://api.syncmart.example
	RealtimeURL string // e.g. wss://realtime.syncmart.example/ws
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8090")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("KV_PATH", "branchd.db")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8090"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Marketplace: MarketplaceConfig{
			APIBaseURL:  strings.TrimSpace(getEnvOrViper("MARKETPLACE_API_URL", "")),
			RealtimeURL: strings.TrimSpace(getEnvOrViper("MARKETPLACE_REALTIME_URL", "")),
		},
		KVPath:   getEnvOrViper("KV_PATH", "branchd.db"),
		BranchID: strings.TrimSpace(getEnvOrViper("BRANCH_ID", "")),
	}

	// Validate required fields
	if cfg.Marketplace.APIBaseURL == "" {
		return nil, fmt.Errorf("MARKETPLACE_API_URL is required")
	}
	if cfg.Marketplace.RealtimeURL == "" {
		return nil, fmt.Errorf("MARKETPLACE_REALTIME_URL is required")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}
