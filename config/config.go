// Package config provides configuration management for the application.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Server      ServerConfig
	Mongo       MongoConfig
	Redis       RedisConfig
	Cache       CacheConfig
	Idempotency IdempotencyConfig
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
}

// MongoConfig holds document store configuration.
type MongoConfig struct {
	URL      string
	Database string
}

// RedisConfig holds shared key/value store configuration.
type RedisConfig struct {
	URL string
}

// CacheConfig holds cache TTLs and tenant scoping.
type CacheConfig struct {
	Tenant    string
	RecordTTL time.Duration
	ListTTL   time.Duration
}

// IdempotencyConfig holds replay-record and lock lifetimes.
type IdempotencyConfig struct {
	TTL     time.Duration
	LockTTL time.Duration
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// LoggingConfig selects the log output format.
type LoggingConfig struct {
	Format string // "json" or "pretty"
}

// Load reads configuration from .env and environment variables.
func Load() (*Config, error) {
	// Load .env file using Viper (optional, won't fail if not found)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if .env file doesn't exist

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("MONGO_URL", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DATABASE", "scaffold")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379")
	viper.SetDefault("CACHE_TENANT", "")
	viper.SetDefault("CACHE_RECORD_TTL_SECONDS", 20*60)
	viper.SetDefault("CACHE_LIST_TTL_SECONDS", 15*60)
	viper.SetDefault("IDEMPOTENCY_TTL_SECONDS", 24*60*60)
	viper.SetDefault("IDEMPOTENCY_LOCK_TTL_SECONDS", 30)
	viper.SetDefault("METRICS_ENABLED", false)
	viper.SetDefault("METRICS_ENDPOINT", "/metrics")
	viper.SetDefault("LOG_FORMAT", "json")

	// Enable automatic environment variable reading
	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
		},
		Mongo: MongoConfig{
			URL:      viper.GetString("MONGO_URL"),
			Database: viper.GetString("MONGO_DATABASE"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("REDIS_URL"),
		},
		Cache: CacheConfig{
			Tenant:    viper.GetString("CACHE_TENANT"),
			RecordTTL: time.Duration(viper.GetInt("CACHE_RECORD_TTL_SECONDS")) * time.Second,
			ListTTL:   time.Duration(viper.GetInt("CACHE_LIST_TTL_SECONDS")) * time.Second,
		},
		Idempotency: IdempotencyConfig{
			TTL:     time.Duration(viper.GetInt("IDEMPOTENCY_TTL_SECONDS")) * time.Second,
			LockTTL: time.Duration(viper.GetInt("IDEMPOTENCY_LOCK_TTL_SECONDS")) * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:  viper.GetBool("METRICS_ENABLED"),
			Endpoint: viper.GetString("METRICS_ENDPOINT"),
		},
		Logging: LoggingConfig{
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	return cfg, nil
}
