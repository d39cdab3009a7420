package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	TieBreaker TieBreakerConfig `mapstructure:"tiebreaker"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Events     EventsConfig     `mapstructure:"events"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxBatchSize   int      `mapstructure:"max_batch_size"`
}

// CatalogConfig holds catalog search API configuration
type CatalogConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	PageSize          int           `mapstructure:"page_size"`
}

// TieBreakerConfig holds language-model tie-breaker configuration
type TieBreakerConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	TopN              int           `mapstructure:"top_n"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type          string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL      string        `mapstructure:"redis_url"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	SuccessTTL    time.Duration `mapstructure:"success_ttl"`
	FailureTTL    time.Duration `mapstructure:"failure_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// MatchingConfig holds resolution pipeline tuning
type MatchingConfig struct {
	Workers int `mapstructure:"workers"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// EventsConfig holds resolution event sink configuration
type EventsConfig struct {
	MetricsEnabled bool     `mapstructure:"metrics_enabled"`
	KafkaBrokers   []string `mapstructure:"kafka_brokers"`
	KafkaTopic     string   `mapstructure:"kafka_topic"`
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cartsmash/")

	// Environment variable settings: server.port -> CARTSMASH_SERVER_PORT
	v.SetEnvPrefix("CARTSMASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env without overriding variables already set.
// A missing file is not an error.
func loadEnvFile() error {
	err := godotenv.Load(".env")
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values. Every key needs a default
// so AutomaticEnv can bind it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_batch_size", 100)

	// Catalog defaults
	v.SetDefault("catalog.base_url", "")
	v.SetDefault("catalog.api_key", "")
	v.SetDefault("catalog.timeout", "10s")
	v.SetDefault("catalog.requests_per_second", 10)
	v.SetDefault("catalog.burst", 20)
	v.SetDefault("catalog.page_size", 20)

	// Tie-breaker defaults
	v.SetDefault("tiebreaker.enabled", false)
	v.SetDefault("tiebreaker.base_url", "https://api.openai.com/v1")
	v.SetDefault("tiebreaker.api_key", "")
	v.SetDefault("tiebreaker.model", "gpt-4o-mini")
	v.SetDefault("tiebreaker.timeout", "8s")
	v.SetDefault("tiebreaker.requests_per_second", 5)
	v.SetDefault("tiebreaker.top_n", 3)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.key_prefix", "cartsmash:")
	v.SetDefault("cache.success_ttl", "30m")
	v.SetDefault("cache.failure_ttl", "5m")
	v.SetDefault("cache.sweep_interval", "0s")

	// Matching defaults
	v.SetDefault("matching.workers", 4)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Event sink defaults
	v.SetDefault("events.metrics_enabled", true)
	v.SetDefault("events.kafka_brokers", []string{})
	v.SetDefault("events.kafka_topic", "cartsmash.resolution-events")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base URL is required (set CARTSMASH_CATALOG_BASE_URL)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Cache.SuccessTTL < 0 || config.Cache.FailureTTL < 0 {
		return fmt.Errorf("cache TTLs must not be negative")
	}

	if config.TieBreaker.Enabled && config.TieBreaker.APIKey == "" {
		return fmt.Errorf("tie-breaker API key is required when the tie-breaker is enabled (set CARTSMASH_TIEBREAKER_API_KEY)")
	}

	return nil
}
