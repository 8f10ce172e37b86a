// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the feed service.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty runs the service on in-memory stores, which is only
	// meant for local development.
	DatabaseURL string `koanf:"database_url"`

	// Redis. Empty disables score update pub/sub and the Redis health check.
	RedisURL string `koanf:"redis_url"`

	// Ranking weight calibration file (JSON). Empty uses built-in defaults.
	CalibrationPath string `koanf:"calibration_path"`

	// Browser origins allowed to call the API. Empty disables CORS handling.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Feed pipeline tuning
	FeedDefaultLimit int `koanf:"feed_default_limit"`
	FeedPoolSize     int `koanf:"feed_pool_size"`

	// Score recompute job
	RecomputeInterval time.Duration `koanf:"recompute_interval"`
	RecomputeWindow   time.Duration `koanf:"recompute_window"`
}

// Configuration validation errors.
var (
	ErrInvalidPort              = errors.New("PORT must be a valid integer")
	ErrInvalidFeedDefaultLimit  = errors.New("FEED_DEFAULT_LIMIT must be positive")
	ErrInvalidFeedPoolSize      = errors.New("FEED_POOL_SIZE must be positive")
	ErrInvalidRecomputeInterval = errors.New("RECOMPUTE_INTERVAL must be positive")
	ErrInvalidRecomputeWindow   = errors.New("RECOMPUTE_WINDOW must be positive")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultFeedDefaultLimit  = 50
	DefaultFeedPoolSize      = 400
	DefaultRecomputeInterval = 5 * time.Minute
	DefaultRecomputeWindow   = time.Hour
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"FEED_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	defaultLimit, limitErr := getEnvIntOrDefault("FEED_DEFAULT_LIMIT", k.Int("feed_default_limit"), DefaultFeedDefaultLimit)
	if limitErr != nil {
		loadErrs = append(loadErrs, limitErr)
	}

	poolSize, poolErr := getEnvIntOrDefault("FEED_POOL_SIZE", k.Int("feed_pool_size"), DefaultFeedPoolSize)
	if poolErr != nil {
		loadErrs = append(loadErrs, poolErr)
	}

	recomputeInterval, intervalErr := getEnvDurationOrDefault("RECOMPUTE_INTERVAL", k.Duration("recompute_interval"), DefaultRecomputeInterval)
	if intervalErr != nil {
		loadErrs = append(loadErrs, intervalErr)
	}

	recomputeWindow, windowErr := getEnvDurationOrDefault("RECOMPUTE_WINDOW", k.Duration("recompute_window"), DefaultRecomputeWindow)
	if windowErr != nil {
		loadErrs = append(loadErrs, windowErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:               port,
		Env:                getEnvOrDefaultMulti([]string{"FEED_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:        getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:           getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		CalibrationPath:    getEnvOrKoanf("CALIBRATION_PATH", k, "calibration_path"),
		CORSAllowedOrigins: getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		FeedDefaultLimit:   defaultLimit,
		FeedPoolSize:       poolSize,
		RecomputeInterval:  recomputeInterval,
		RecomputeWindow:    recomputeWindow,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvListOrKoanf returns the environment variable split on commas if set,
// otherwise the koanf string slice. Blank entries are dropped.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable parsed as a
// duration if set, otherwise the koanf value, or default.
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all configuration values are usable.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.FeedDefaultLimit <= 0 {
		errs = append(errs, ErrInvalidFeedDefaultLimit)
	}
	if c.FeedPoolSize <= 0 {
		errs = append(errs, ErrInvalidFeedPoolSize)
	}
	if c.RecomputeInterval <= 0 {
		errs = append(errs, ErrInvalidRecomputeInterval)
	}
	if c.RecomputeWindow <= 0 {
		errs = append(errs, ErrInvalidRecomputeWindow)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// Connection string credentials are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":               fmt.Sprintf("%d", c.Port),
		"env":                c.Env,
		"database_url":       maskURL(c.DatabaseURL),
		"redis_url":          maskURL(c.RedisURL),
		"calibration_path":   orNotSet(c.CalibrationPath),
		"cors_origins":       fmt.Sprintf("%d", len(c.CORSAllowedOrigins)),
		"feed_default_limit": fmt.Sprintf("%d", c.FeedDefaultLimit),
		"feed_pool_size":     fmt.Sprintf("%d", c.FeedPoolSize),
		"recompute_interval": c.RecomputeInterval.String(),
		"recompute_window":   c.RecomputeWindow.String(),
	}
}

func orNotSet(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// maskURL masks the password in a connection URL.
// Supports postgres://, postgresql://, and redis:// schemes.
func maskURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return s
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
