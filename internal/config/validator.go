// Package config provides functionality for loading and accessing application configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ValidateAndFixConfig validates the configuration and fixes any issues
func ValidateAndFixConfig(config *Config) []string {
	var warnings []string

	// Check server timeouts
	minTimeout := 1 * time.Second
	maxTimeout := 5 * time.Minute

	if config.Server.ReadTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too short (%v), setting to %v", config.Server.ReadTimeout, minTimeout))
		config.Server.ReadTimeout = minTimeout
	} else if config.Server.ReadTimeout > maxTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too long (%v), setting to %v", config.Server.ReadTimeout, maxTimeout))
		config.Server.ReadTimeout = maxTimeout
	}

	if config.Server.WriteTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server write timeout is too short (%v), setting to %v", config.Server.WriteTimeout, minTimeout))
		config.Server.WriteTimeout = minTimeout
	} else if config.Server.WriteTimeout > maxTimeout {
		warnings = append(warnings, fmt.Sprintf("Server write timeout is too long (%v), setting to %v", config.Server.WriteTimeout, maxTimeout))
		config.Server.WriteTimeout = maxTimeout
	}

	if config.Server.IdleTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server idle timeout is too short (%v), setting to %v", config.Server.IdleTimeout, minTimeout))
		config.Server.IdleTimeout = minTimeout
	}

	// Check MongoDB connection string
	if !strings.HasPrefix(config.Database.MongoDB.URI, "mongodb://") && !strings.HasPrefix(config.Database.MongoDB.URI, "mongodb+srv://") {
		warnings = append(warnings, "MongoDB URI is invalid, must start with mongodb:// or mongodb+srv://")
	}

	// Check Redis addresses
	for _, addr := range config.Database.Redis.Addresses {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Invalid Redis address: %s", addr))
			continue
		}

		if host == "" {
			warnings = append(warnings, fmt.Sprintf("Redis address has empty host: %s", addr))
		}

		if port == "" {
			warnings = append(warnings, fmt.Sprintf("Redis address has empty port: %s", addr))
		}
	}

	// Check upload configuration
	if config.Upload.MaxEvents > 10_000_000 {
		warnings = append(warnings, fmt.Sprintf("Upload event cap is very high (%d), aggregation memory scales with it", config.Upload.MaxEvents))
	}
	if config.Upload.ProcessTimeout < time.Minute {
		warnings = append(warnings, fmt.Sprintf("Upload process timeout is too short (%v), setting to 1m", config.Upload.ProcessTimeout))
		config.Upload.ProcessTimeout = time.Minute
	}

	// Check share configuration
	if config.Share.TokenCacheTTL <= 0 {
		warnings = append(warnings, "Share token cache TTL must be positive, setting to 1h")
		config.Share.TokenCacheTTL = time.Hour
	}
	if config.Share.PreviewCacheSize <= 0 {
		warnings = append(warnings, "Share preview cache size must be positive, setting to 1000")
		config.Share.PreviewCacheSize = 1000
	}

	// Check logging configuration
	validLevels := map[string]bool{
		"debug":  true,
		"info":   true,
		"warn":   true,
		"error":  true,
		"dpanic": true,
		"panic":  true,
		"fatal":  true,
	}

	if !validLevels[strings.ToLower(config.Logging.Level)] {
		warnings = append(warnings, fmt.Sprintf("Invalid logging level: %s, setting to 'info'", config.Logging.Level))
		config.Logging.Level = "info"
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[strings.ToLower(config.Logging.Format)] {
		warnings = append(warnings, fmt.Sprintf("Invalid logging format: %s, setting to 'json'", config.Logging.Format))
		config.Logging.Format = "json"
	}

	// Check if output paths exist and are writable
	for _, path := range config.Logging.OutputPaths {
		if path != "stdout" && path != "stderr" {
			dir := filepath.Dir(path)
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				warnings = append(warnings, fmt.Sprintf("Log output directory does not exist: %s", dir))
			} else {
				// Check if directory is writable
				testFile := filepath.Join(dir, ".test_write")
				if err := os.WriteFile(testFile, []byte{}, 0644); err != nil {
					warnings = append(warnings, fmt.Sprintf("Log output directory is not writable: %s", dir))
				} else {
					os.Remove(testFile)
				}
			}
		}
	}

	return warnings
}

// GetLogLevel converts a string log level to a zap log level
func GetLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsFeatureEnabled checks if a feature is enabled in the configuration
func IsFeatureEnabled(config *Config, feature string) bool {
	val := reflect.ValueOf(config.Features)
	field := val.FieldByName(feature)

	if !field.IsValid() || field.Kind() != reflect.Bool {
		return false
	}

	return field.Bool()
}

// ConfigureLogger configures the logger based on the configuration
func ConfigureLogger(config *Config) (*zap.Logger, error) {
	level := GetLogLevel(config.Logging.Level)

	// Configure logger
	logConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      config.Environment == "development",
		Encoding:         config.Logging.Format,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      config.Logging.OutputPaths,
		ErrorOutputPaths: config.Logging.ErrorOutputPaths,
	}

	// Customize encoder for console format
	if config.Logging.Format == "console" {
		logConfig.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	// Build the logger
	return logConfig.Build()
}

// CreateDefaultConfig creates the default configuration
func CreateDefaultConfig() *Config {
	config := &Config{}

	// Set default environment
	config.Environment = "development"

	// Set default server configuration
	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 60 * time.Second
	config.Server.WriteTimeout = 60 * time.Second
	config.Server.IdleTimeout = 120 * time.Second
	config.Server.AllowedOrigins = []string{"*"}
	config.Server.UseHTTPS = false

	// Set default MongoDB configuration
	config.Database.MongoDB.URI = "mongodb://localhost:27017"
	config.Database.MongoDB.Database = "livereview"
	config.Database.MongoDB.Timeout = 10 * time.Second
	config.Database.MongoDB.MaxPoolSize = 100
	config.Database.MongoDB.MinPoolSize = 10
	config.Database.MongoDB.MaxIdleTime = 60 * time.Second

	// Set default Redis configuration
	config.Database.Redis.Addresses = []string{"localhost:6379"}
	config.Database.Redis.Database = 0
	config.Database.Redis.MaxRetries = 3
	config.Database.Redis.PoolSize = 100
	config.Database.Redis.MinIdleConns = 10
	config.Database.Redis.DialTimeout = 5 * time.Second
	config.Database.Redis.ReadTimeout = 3 * time.Second
	config.Database.Redis.WriteTimeout = 3 * time.Second
	config.Database.Redis.IdleTimeout = 300 * time.Second

	// Set default upload configuration
	config.Upload.MaxEvents = 5_000_000
	config.Upload.MaxBodyBytes = 512 * 1024 * 1024
	config.Upload.ProcessTimeout = 10 * time.Minute
	config.Upload.Workers = 2

	// Set default share configuration
	config.Share.BaseURL = "http://localhost:8080"
	config.Share.TokenCacheTTL = time.Hour
	config.Share.PreviewCacheTTL = 24 * time.Hour
	config.Share.PreviewCacheSize = 1000

	// Set default community configuration
	config.Community.MinSessions = 10
	config.Community.RefreshInterval = 15 * time.Minute

	// Set default logging configuration
	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.OutputPaths = []string{"stdout"}
	config.Logging.ErrorOutputPaths = []string{"stderr"}

	// Set default feature flags
	config.Features.EnableUploads = true
	config.Features.EnableCommunityStats = true
	config.Features.EnableSharePages = true
	config.Features.EnablePersonality = true

	return config
}
