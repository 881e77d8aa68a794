// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (rate limiting; optional)
	RedisAddr string `koanf:"redis_addr"`

	// JWT Authentication
	JWTSecret string `koanf:"jwt_secret"`
	// JWTPreviousSecret allows zero-downtime secret rotation: tokens signed
	// with the previous secret keep verifying until they expire.
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`
	// DeviceKey is the shared key a client device presents to obtain its
	// first token pair. Token issuance is disabled when unset.
	DeviceKey string `koanf:"device_key"`

	// Object storage (S3-compatible; optional)
	StorageBucketName      string `koanf:"storage_bucket_name"`
	StorageAccessKeyID     string `koanf:"storage_access_key_id"`
	StorageSecretAccessKey string `koanf:"storage_secret_access_key"`
	StorageEndpoint        string `koanf:"storage_endpoint"`
	StorageMaxUploadSizeMB int    `koanf:"storage_max_upload_size_mb"` // Default: 50MB

	// Extraction service (readable-text extraction for saved links; optional)
	ExtractorURL string `koanf:"extractor_url"`

	// Ranking calibration file (optional; defaults apply when empty)
	RankingCalibrationPath string `koanf:"ranking_calibration_path"`

	// CORS origins the browser reader is served from. Empty disables CORS.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled bool   `koanf:"tracing_enabled"`
	OTLPEndpoint   string `koanf:"otlp_endpoint"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL            = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret              = errors.New("JWT_SECRET is required")
	ErrMissingStorageBucketName      = errors.New("STORAGE_BUCKET_NAME is required")
	ErrMissingStorageAccessKeyID     = errors.New("STORAGE_ACCESS_KEY_ID is required")
	ErrMissingStorageSecretAccessKey = errors.New("STORAGE_SECRET_ACCESS_KEY is required")
	ErrMissingStorageEndpoint        = errors.New("STORAGE_ENDPOINT is required")
	ErrMissingOTLPEndpoint           = errors.New("OTLP_ENDPOINT is required when tracing is enabled")
	ErrInvalidPort                   = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort                   = 8080
	DefaultEnv                    = "development"
	DefaultStorageMaxUploadSizeMB = 50
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

	// Parse port from env, collecting error if invalid
	// Try ANTHIST_PORT first, then PORT for backward compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"ANTHIST_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	// Parse max upload size from env with default
	maxUploadSize, uploadSizeErr := getEnvIntOrDefault("STORAGE_MAX_UPLOAD_SIZE_MB", k.Int("storage_max_upload_size_mb"), DefaultStorageMaxUploadSizeMB)
	if uploadSizeErr != nil {
		loadErrs = append(loadErrs, uploadSizeErr)
	}

	// Parse tracing flag from env with default
	tracingEnabled := false
	if k.Exists("tracing_enabled") {
		tracingEnabled = k.Bool("tracing_enabled")
	}
	if val := os.Getenv("TRACING_ENABLED"); val != "" {
		// Env var takes precedence over file config
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			tracingEnabled = true
		case "false", "0", "no", "off":
			tracingEnabled = false
		}
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"ANTHIST_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:              getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		JWTSecret:              getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:      getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		DeviceKey:              getEnvOrKoanf("DEVICE_KEY", k, "device_key"),
		StorageBucketName:      getEnvOrKoanf("STORAGE_BUCKET_NAME", k, "storage_bucket_name"),
		StorageAccessKeyID:     getEnvOrKoanf("STORAGE_ACCESS_KEY_ID", k, "storage_access_key_id"),
		StorageSecretAccessKey: getEnvOrKoanf("STORAGE_SECRET_ACCESS_KEY", k, "storage_secret_access_key"),
		StorageEndpoint:        getEnvOrKoanf("STORAGE_ENDPOINT", k, "storage_endpoint"),
		StorageMaxUploadSizeMB: maxUploadSize,
		ExtractorURL:           getEnvOrKoanf("EXTRACTOR_URL", k, "extractor_url"),
		RankingCalibrationPath: getEnvOrKoanf("RANKING_CALIBRATION_PATH", k, "ranking_calibration_path"),
		CORSAllowedOrigins:     getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		TracingEnabled:         tracingEnabled,
		OTLPEndpoint:           getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvListOrKoanf returns the environment variable split on commas if set,
// otherwise the koanf string slice.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		var out []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
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
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
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
// Note: A port value of 0 from a YAML file will fall back to the default; port 0 is not supported in YAML files.
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

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}

	// Storage configuration is optional. Only validate fields if any storage value is set.
	if c.StorageBucketName != "" || c.StorageAccessKeyID != "" || c.StorageSecretAccessKey != "" || c.StorageEndpoint != "" {
		if c.StorageBucketName == "" {
			errs = append(errs, ErrMissingStorageBucketName)
		}
		if c.StorageAccessKeyID == "" {
			errs = append(errs, ErrMissingStorageAccessKeyID)
		}
		if c.StorageSecretAccessKey == "" {
			errs = append(errs, ErrMissingStorageSecretAccessKey)
		}
		if c.StorageEndpoint == "" {
			errs = append(errs, ErrMissingStorageEndpoint)
		}
	}

	if c.TracingEnabled && c.OTLPEndpoint == "" {
		errs = append(errs, ErrMissingOTLPEndpoint)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                       fmt.Sprintf("%d", c.Port),
		"env":                        c.Env,
		"database_url":               maskDatabaseURL(c.DatabaseURL),
		"redis_addr":                 c.RedisAddr,
		"jwt_secret":                 maskSecret(c.JWTSecret),
		"jwt_previous_secret":        maskSecret(c.JWTPreviousSecret),
		"device_key":                 maskSecret(c.DeviceKey),
		"storage_bucket_name":        c.StorageBucketName,
		"storage_access_key_id":      maskSecret(c.StorageAccessKeyID),
		"storage_secret_access_key":  maskSecret(c.StorageSecretAccessKey),
		"storage_endpoint":           c.StorageEndpoint,
		"storage_max_upload_size_mb": fmt.Sprintf("%d", c.StorageMaxUploadSizeMB),
		"extractor_url":              c.ExtractorURL,
		"ranking_calibration_path":   c.RankingCalibrationPath,
		"cors_allowed_origins":       strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":            fmt.Sprintf("%t", c.TracingEnabled),
		"otlp_endpoint":              c.OTLPEndpoint,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
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
