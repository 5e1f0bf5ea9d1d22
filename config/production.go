// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Encryption EncryptionConfig `json:"encryption"`
	Events     EventsConfig     `json:"events"`
	Store      StoreConfig      `json:"store"`
	Tracker    TrackerConfig    `json:"tracker"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type LoggingConfig struct {
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Provider        string        `json:"provider"` // memory, redis
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	RedisPrefix     string        `json:"redis_prefix"`
	ConfigTTL       time.Duration `json:"config_ttl"`
	PriceTTL        time.Duration `json:"price_ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type EncryptionConfig struct {
	Key  string `json:"-"`
	Salt string `json:"-"`
}

type EventsConfig struct {
	Provider      string   `json:"provider"` // log, redis, kafka, none
	ChannelPrefix string   `json:"channel_prefix"`
	KafkaBrokers  []string `json:"kafka_brokers"`
	KafkaTopic    string   `json:"kafka_topic"`
	KafkaClientID string   `json:"kafka_client_id"`
}

type StoreConfig struct {
	Timeout time.Duration `json:"timeout"`
}

type TrackerConfig struct {
	QueueSize int `json:"queue_size"`
	Workers   int `json:"workers"`
}

type SchedulerConfig struct {
	CacheRefreshEnabled  bool          `json:"cache_refresh_enabled"`
	CacheRefreshInterval time.Duration `json:"cache_refresh_interval"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
}

// IsDevelopment reports whether the process runs in a development environment
func (d DeploymentConfig) IsDevelopment() bool {
	return d.Environment == "development" || d.Environment == "local" || d.Environment == "test"
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Existing environment variables take precedence over .env entries
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Output:     getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:   getEnvString("LOG_FILE_PATH", "/var/log/fuel-pricing/app.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Provider:        getEnvString("CACHE_PROVIDER", "memory"),
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:     getEnvString("CACHE_REDIS_PREFIX", "fuel:"),
			ConfigTTL:       getEnvDuration("CACHE_CONFIG_TTL", time.Hour),
			PriceTTL:        getEnvDuration("CACHE_PRICE_TTL", 30*time.Minute),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", time.Minute),
		},
		Encryption: EncryptionConfig{
			Key:  getEnvString("CONFIG_ENCRYPTION_KEY", ""),
			Salt: getEnvString("CONFIG_ENCRYPTION_SALT", "fuel-config-salt"),
		},
		Events: EventsConfig{
			Provider:      getEnvString("EVENTS_PROVIDER", "log"),
			ChannelPrefix: getEnvString("EVENTS_CHANNEL_PREFIX", "fuel.events."),
			KafkaBrokers:  getEnvStringSlice("EVENTS_KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:    getEnvString("EVENTS_KAFKA_TOPIC", "fuel-config-events"),
			KafkaClientID: getEnvString("EVENTS_KAFKA_CLIENT_ID", "fuel-pricing-config"),
		},
		Store: StoreConfig{
			Timeout: getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		},
		Tracker: TrackerConfig{
			QueueSize: getEnvInt("ACCESS_TRACKER_QUEUE_SIZE", 1024),
			Workers:   getEnvInt("ACCESS_TRACKER_WORKERS", 2),
		},
		Scheduler: SchedulerConfig{
			CacheRefreshEnabled:  getEnvBool("SCHEDULER_CACHE_REFRESH_ENABLED", true),
			CacheRefreshInterval: getEnvDuration("SCHEDULER_CACHE_REFRESH_INTERVAL", 10*time.Minute),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errs []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errs = append(errs, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errs = append(errs, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errs = append(errs, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errs = append(errs, "DB_USER is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}

	// Validate logging configuration
	if !slices.Contains([]string{"stdout", "file", "both"}, cfg.Logging.Output) {
		errs = append(errs, "LOG_OUTPUT must be one of: stdout, file, both")
	}

	// Validate cache configuration
	switch cfg.Cache.Provider {
	case "memory":
	case "redis":
		if cfg.Cache.RedisURL == "" {
			errs = append(errs, "CACHE_REDIS_URL is required with redis cache provider")
		}
	default:
		errs = append(errs, "CACHE_PROVIDER must be one of: memory, redis")
	}
	if cfg.Cache.ConfigTTL <= 0 || cfg.Cache.PriceTTL <= 0 {
		errs = append(errs, "CACHE_CONFIG_TTL and CACHE_PRICE_TTL must be positive")
	}

	// Validate encryption configuration
	if cfg.Encryption.Key == "" && !cfg.Deployment.IsDevelopment() {
		errs = append(errs, "CONFIG_ENCRYPTION_KEY is required outside development")
	}

	// Validate events configuration
	switch cfg.Events.Provider {
	case "log", "redis", "none":
	case "kafka":
		if len(cfg.Events.KafkaBrokers) == 0 || cfg.Events.KafkaTopic == "" {
			errs = append(errs, "EVENTS_KAFKA_BROKERS and EVENTS_KAFKA_TOPIC are required with kafka events provider")
		}
	default:
		errs = append(errs, "EVENTS_PROVIDER must be one of: log, redis, kafka, none")
	}

	if cfg.Store.Timeout <= 0 {
		errs = append(errs, "STORE_TIMEOUT must be positive")
	}
	if cfg.Tracker.QueueSize <= 0 || cfg.Tracker.Workers <= 0 {
		errs = append(errs, "ACCESS_TRACKER_QUEUE_SIZE and ACCESS_TRACKER_WORKERS must be positive")
	}

	// Return validation errors if any
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
