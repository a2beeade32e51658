package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the device agent.
type Config struct {
	// Runtime environment: "development" or "release".
	AppEnv string `mapstructure:"APP_ENV"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Remote API. The register path is configurable because the backend
	// route is still provisional upstream; do not hard-code it elsewhere.
	APIBaseURL   string `mapstructure:"API_BASE_URL"`
	RegisterPath string `mapstructure:"REGISTER_PATH"`
	LocationPath string `mapstructure:"LOCATION_PATH"`

	// Local store (SQLite file on the device).
	StorePath string `mapstructure:"STORE_PATH"`

	// Push delivery. When PUSH_LISTEN_ADDR is empty the messaging
	// capability is considered unavailable and registration proceeds
	// without a delivery token.
	PushRelayURL   string `mapstructure:"PUSH_RELAY_URL"`
	PushListenAddr string `mapstructure:"PUSH_LISTEN_ADDR"`

	// Location capability.
	LocationSource     string        `mapstructure:"LOCATION_SOURCE"` // "static" or "command"
	LocationLat        float64       `mapstructure:"LOCATION_LAT"`
	LocationLon        float64       `mapstructure:"LOCATION_LON"`
	LocationCommand    string        `mapstructure:"LOCATION_COMMAND"`
	LocationFixTimeout time.Duration `mapstructure:"LOCATION_FIX_TIMEOUT_SECONDS"`

	// Whether the platform separates foreground and background location
	// grants (Android 10+ semantics).
	BackgroundGrantRequired bool `mapstructure:"BACKGROUND_GRANT_REQUIRED"`

	// Cron schedule for the delivery-token refresh job. Empty disables it.
	TokenRefreshSchedule string `mapstructure:"TOKEN_REFRESH_SCHEDULE"`

	// Firebase Admin SDK credentials, used by the push simulator tool only.
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()

	// Set default values
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("API_BASE_URL", "")
	v.SetDefault("REGISTER_PATH", "/user/register")
	v.SetDefault("LOCATION_PATH", "/location")

	v.SetDefault("STORE_PATH", "agent.db")

	v.SetDefault("PUSH_RELAY_URL", "")
	v.SetDefault("PUSH_LISTEN_ADDR", "")

	v.SetDefault("LOCATION_SOURCE", "static")
	v.SetDefault("LOCATION_LAT", 0.0)
	v.SetDefault("LOCATION_LON", 0.0)
	v.SetDefault("LOCATION_COMMAND", "")
	v.SetDefault("LOCATION_FIX_TIMEOUT_SECONDS", 15)

	v.SetDefault("BACKGROUND_GRANT_REQUIRED", true)

	v.SetDefault("TOKEN_REFRESH_SCHEDULE", "")

	// Firebase (push simulator only)
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")
	v.SetDefault("FIREBASE_PROJECT_ID", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Convert duration fields
	cfg.LocationFixTimeout = time.Duration(v.GetInt("LOCATION_FIX_TIMEOUT_SECONDS")) * time.Second

	// Basic validation for critical configs
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("FATAL: API_BASE_URL is not set. The agent cannot register without a backend")
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.LocationSource != "static" && cfg.LocationSource != "command" {
		return nil, fmt.Errorf("FATAL: LOCATION_SOURCE must be 'static' or 'command', got %q", cfg.LocationSource)
	}
	if cfg.LocationSource == "command" && strings.TrimSpace(cfg.LocationCommand) == "" {
		return nil, fmt.Errorf("FATAL: LOCATION_SOURCE is 'command' but LOCATION_COMMAND is not set")
	}

	return &cfg, nil
}
