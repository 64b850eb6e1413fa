package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all daemon configuration
type Config struct {
	Server  ServerConfig
	API     APIConfig
	Store   StoreConfig
	Assets  AssetsConfig
	Refresh RefreshConfig
	Logging LoggingConfig
}

// ServerConfig contains the daemon HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	FrontendURL     string
}

// APIConfig contains the remote alert API configuration
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// StoreConfig contains persistent store configuration
type StoreConfig struct {
	Path string
}

// AssetsConfig contains static-asset cache configuration
type AssetsConfig struct {
	Dir     string
	Version string
	Origin  string
	Paths   []string
}

// RefreshConfig contains the scheduled-refresh configuration
type RefreshConfig struct {
	Enabled  bool
	Schedule string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// DefaultAssetPaths is the app shell cached at install time
var DefaultAssetPaths = []string{
	"/",
	"/index.html",
	"/manifest.json",
	"/icons/icon.png",
	"/icons/icon-192x192.png",
	"/icons/icon-512x512.png",
	"/icons/fire.png",
	"/icons/flood.png",
	"/icons/heatwave.png",
	"/icons/seagull.png",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8090),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
		},
		API: APIConfig{
			BaseURL: getEnv("API_URL", "http://localhost:8080"),
			Timeout: getEnvAsDuration("API_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Path: getEnv("STORE_PATH", "./alertsync.db"),
		},
		Assets: AssetsConfig{
			Dir:     getEnv("ASSET_CACHE_DIR", "./cache"),
			Version: getEnv("ASSET_CACHE_VERSION", "v1"),
			Origin:  getEnv("ASSET_ORIGIN", "http://localhost:5173"),
			Paths:   getEnvAsList("ASSET_PATHS", DefaultAssetPaths),
		},
		Refresh: RefreshConfig{
			Enabled:  getEnvAsBool("REFRESH_ENABLED", false),
			Schedule: getEnv("REFRESH_SCHEDULE", "@every 15m"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_URL must be set")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH must be set")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
