package config

import (
	"os"
	"strconv"
	"time"

	"zerofield/internal/errors"
)

// Config represents the service-level configuration shared by the binaries
type Config struct {
	Database DatabaseConfig `validate:"required"`
	Server   ServerConfig   `validate:"required"`
	Log      LogConfig
	Data     DataConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `validate:"required,oneof=sqlite3 postgres"`
	URL    string `validate:"required"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string `validate:"required"`
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// DataConfig points at the default observational datasets
type DataConfig struct {
	BAOFile    string
	SNeFile    string
	CMBFile    string
	HubbleFile string
}

// Load reads configuration from environment variables and validates it.
// Callers load .env files beforehand.
func Load() (*Config, error) {
	config := &Config{
		Database: *loadDatabaseConfig(),
		Server:   *loadServerConfig(),
		Log:      LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
		Data:     *loadDataConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver: getEnvOrDefault("DATABASE_DRIVER", "sqlite3"),
		URL:    getEnvOrDefault("DATABASE_URL", "file:zerofield.db?_foreign_keys=on"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		MetricsEnabled:  getEnvBoolOrDefault("METRICS_ENABLED", true),
	}
}

func loadDataConfig() *DataConfig {
	return &DataConfig{
		BAOFile:    getEnvOrDefault("ZFP_BAO_FILE", ""),
		SNeFile:    getEnvOrDefault("ZFP_SNE_FILE", ""),
		CMBFile:    getEnvOrDefault("ZFP_CMB_FILE", ""),
		HubbleFile: getEnvOrDefault("ZFP_HZ_FILE", ""),
	}
}

func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
