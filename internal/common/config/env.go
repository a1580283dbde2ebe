package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Store backends selectable with STORE_BACKEND
const (
	StoreBackendDynamoDB = "dynamodb"
	StoreBackendBadger   = "badger"
)

// Config represents the application configuration
// This struct contains all configuration parameters for the application
type Config struct {
	// Environment and region info
	Environment string `envconfig:"ENVIRONMENT" default:"dev"`
	Region      string `envconfig:"REGION" default:"jp"`

	// AWS-specific configuration
	AWSRegion          string `envconfig:"AWS_REGION"`
	FavoritesTableName string `envconfig:"FAVORITES_TABLE_NAME" default:"globoclima-user-favorites-dev"`
	// An empty value disables the country listing capability
	CountryIndexName string `envconfig:"COUNTRY_INDEX_NAME" default:"CountryCodeIndex"`
	DynamoDBEndpoint string `envconfig:"DYNAMODB_ENDPOINT"`
	UserPoolID       string `envconfig:"USER_POOL_ID"`
	UserPoolClientID string `envconfig:"USER_POOL_CLIENT_ID"`

	// Store selection
	StoreBackend string `envconfig:"STORE_BACKEND" default:"dynamodb"`
	BadgerPath   string `envconfig:"BADGER_PATH" default:"./data/badger"`

	// Local HTTP server
	LocalAddr string `envconfig:"LOCAL_ADDR" default:":8080"`
	// Caller identity for local requests without an Authorization header
	LocalDevUser string `envconfig:"LOCAL_DEV_USER"`

	LogLevelName string `envconfig:"LOG_LEVEL" default:"info"`

	// Secrets Manager secret holding a JSON overlay, see ApplySecret
	ConfigSecretID string `envconfig:"CONFIG_SECRET_ID"`
}

// LoadFromEnv loads the configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if cfg.AWSRegion == "" {
		// Default AWS regions based on our region code
		switch cfg.Region {
		case "us":
			cfg.AWSRegion = "us-west-2"
		case "eu":
			cfg.AWSRegion = "eu-west-1"
		case "br":
			cfg.AWSRegion = "sa-east-1"
		case "jp":
			cfg.AWSRegion = "ap-northeast-1"
		default:
			cfg.AWSRegion = "ap-northeast-1"
		}
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = StoreBackendDynamoDB
	}
	switch cfg.StoreBackend {
	case StoreBackendDynamoDB:
		if cfg.FavoritesTableName == "" {
			return nil, fmt.Errorf("FAVORITES_TABLE_NAME environment variable is required")
		}
	case StoreBackendBadger:
		if cfg.BadgerPath == "" {
			return nil, fmt.Errorf("BADGER_PATH environment variable is required")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

// CountryIndexEnabled reports whether the country listing has an index to read
func (c *Config) CountryIndexEnabled() bool {
	return c.CountryIndexName != ""
}

// LogLevel returns the slog level named by LOG_LEVEL, falling back to info
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevelName)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger creates the JSON logger used by every binary
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel()}))
}
