package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Source site
	SourceURL string

	// Server
	ServerPort string

	// Cache
	CacheDir      string
	SweepSpec     string        // cron expression for the daily cache sweep
	RetentionDays int           // age after which unprotected cache files are removed
	FetchTimeout  time.Duration // connect+read timeout for upstream fetches

	// Scraping
	ScrapeParallelism int // concurrent episode-page fetches per listing page

	// Proxy
	ProxyBufferChunks int           // bounded relay channel capacity
	SpeedLogInterval  time.Duration // aggregate throughput log cadence

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("SOURCE_URL", "https://www.desitellybox.me/")
	viper.SetDefault("SERVER_PORT", "3000")
	viper.SetDefault("SWEEP_CRON", "30 0 * * *")
	viper.SetDefault("RETENTION_DAYS", 3)
	viper.SetDefault("FETCH_TIMEOUT_SECONDS", 30)
	viper.SetDefault("SCRAPE_PARALLELISM", 8)
	viper.SetDefault("PROXY_BUFFER_CHUNKS", 32)
	viper.SetDefault("SPEED_LOG_INTERVAL_SECONDS", 60)
	viper.SetDefault("LOG_LEVEL", "info")

	cacheDir := viper.GetString("CACHE_DIR")
	if cacheDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cacheDir = filepath.Join(homeDir, ".cache", "tvshows")
	} else {
		absPath, err := filepath.Abs(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CACHE_DIR: %w", err)
		}
		cacheDir = absPath
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	config := &Config{
		SourceURL: viper.GetString("SOURCE_URL"),

		ServerPort: viper.GetString("SERVER_PORT"),

		CacheDir:      cacheDir,
		SweepSpec:     viper.GetString("SWEEP_CRON"),
		RetentionDays: viper.GetInt("RETENTION_DAYS"),
		FetchTimeout:  time.Duration(viper.GetInt("FETCH_TIMEOUT_SECONDS")) * time.Second,

		ScrapeParallelism: viper.GetInt("SCRAPE_PARALLELISM"),

		ProxyBufferChunks: viper.GetInt("PROXY_BUFFER_CHUNKS"),
		SpeedLogInterval:  time.Duration(viper.GetInt("SPEED_LOG_INTERVAL_SECONDS")) * time.Second,

		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	// Validate required fields
	if config.SourceURL == "" {
		return nil, fmt.Errorf("SOURCE_URL is required")
	}
	if config.RetentionDays < 1 {
		return nil, fmt.Errorf("RETENTION_DAYS must be at least 1")
	}
	if config.ScrapeParallelism < 1 {
		return nil, fmt.Errorf("SCRAPE_PARALLELISM must be at least 1")
	}
	if config.ProxyBufferChunks < 1 {
		return nil, fmt.Errorf("PROXY_BUFFER_CHUNKS must be at least 1")
	}

	return config, nil
}
