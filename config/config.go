package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Authentication modes
const (
	AuthModeDisabled = "disabled"
	AuthModeAuth0    = "auth0"
	AuthModeHS256    = "hs256"
)

// Config holds all application configuration
type Config struct {
	GoEnv              string
	Port               string
	DBDriver           string
	DatabaseURL        string
	WarehouseAPIURL    string
	UpstreamTimeout    time.Duration
	TimeZone           string
	CORSOrigins        []string
	AuthMode           string
	AuthDevSubject     string
	Auth0Domain        string
	Auth0Audience      string
	JWTSecret          string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	LogLevel           string

	location *time.Location
}

var current *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// If environment-specific file doesn't exist, try .env
		if err := godotenv.Load(); err != nil {
			// In production, environment variables are set directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	timeout, err := time.ParseDuration(getEnv("UPSTREAM_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT is not a valid duration: %w", err)
	}

	config := &Config{
		GoEnv:              getEnv("GO_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DBDriver:           getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		WarehouseAPIURL:    strings.TrimRight(getEnv("WAREHOUSE_API_URL", "http://localhost:8000/api/v1"), "/"),
		UpstreamTimeout:    timeout,
		TimeZone:           getEnv("TIME_ZONE", "Local"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		AuthMode:           strings.ToLower(getEnv("AUTH_MODE", AuthModeAuth0)),
		AuthDevSubject:     getEnv("AUTH_DEV_SUBJECT", ""),
		Auth0Domain:        getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:      getEnv("AUTH0_AUDIENCE", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	current = config
	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}

	if c.WarehouseAPIURL == "" {
		return fmt.Errorf("WAREHOUSE_API_URL is required")
	}

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("TIME_ZONE %q is not a known time zone: %w", c.TimeZone, err)
	}
	c.location = loc

	switch c.AuthMode {
	case AuthModeDisabled:
		if c.AuthDevSubject == "" {
			return fmt.Errorf("AUTH_DEV_SUBJECT is required when AUTH_MODE=disabled")
		}
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=disabled is not allowed in production")
		}
	case AuthModeAuth0:
		if c.Auth0Domain == "" || c.Auth0Audience == "" {
			return fmt.Errorf("AUTH0_DOMAIN and AUTH0_AUDIENCE are required when AUTH_MODE=auth0")
		}
	case AuthModeHS256:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=hs256")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be disabled, auth0 or hs256, got %q", c.AuthMode)
	}

	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// Location returns the time zone used for calendar dates
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// ArchiveEnabled reports whether submitted orders are archived to S3
func (c *Config) ArchiveEnabled() bool {
	return c.AWSS3Bucket != ""
}

// GetConfig returns the configuration loaded last
func GetConfig() *Config {
	return current
}

// SetConfig sets the configuration instance (primarily for testing)
func SetConfig(cfg *Config) {
	current = cfg
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
