// Package config loads application configuration from environment variables,
// with optional .env file support for local development.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all extractor configuration.
type Config struct {
	Extraction ExtractionConfig
	Fusion     FusionConfig
	Cache      CacheConfig
	Logging    LoggingConfig
}

// ExtractionConfig controls which methods run and how.
type ExtractionConfig struct {
	// MaxConcurrentMethods bounds the extraction worker pool.
	MaxConcurrentMethods int
	// MethodTimeout bounds a single extraction method's runtime.
	MethodTimeout time.Duration
	// EuropeanAmounts forces European separators instead of dialect probing.
	EuropeanAmounts bool
	// OCREnabled gates the OCR path, which needs a configured backend.
	OCREnabled bool
	// OCREndpoint is the recognition service handling rasterized pages.
	OCREndpoint string
}

// FusionConfig carries the engine thresholds that are operator-tunable.
type FusionConfig struct {
	MinConfidence  float64
	AnomalyEnabled bool
}

// CacheConfig controls result memoization.
type CacheConfig struct {
	Enabled bool
	Dir     string
	TTL     time.Duration
	// SweepSchedule is a cron expression for expired-entry eviction.
	SweepSchedule string
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Extraction: ExtractionConfig{
			MaxConcurrentMethods: getEnvAsInt("EXTRACT_MAX_CONCURRENT", 4),
			MethodTimeout:        getEnvAsDuration("EXTRACT_METHOD_TIMEOUT", 30*time.Second),
			EuropeanAmounts:      getEnvAsBool("EXTRACT_EUROPEAN_AMOUNTS", false),
			OCREnabled:           getEnvAsBool("OCR_ENABLED", false),
			OCREndpoint:          getEnv("OCR_ENDPOINT", ""),
		},
		Fusion: FusionConfig{
			MinConfidence:  getEnvAsFloat("FUSION_MIN_CONFIDENCE", 0.5),
			AnomalyEnabled: getEnvAsBool("FUSION_ANOMALY_ENABLED", true),
		},
		Cache: CacheConfig{
			Enabled:       getEnvAsBool("CACHE_ENABLED", true),
			Dir:           getEnv("CACHE_DIR", ".bankfuse-cache"),
			TTL:           getEnvAsDuration("CACHE_TTL", 24*time.Hour),
			SweepSchedule: getEnv("CACHE_SWEEP_SCHEDULE", "0 3 * * *"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if cfg.Extraction.OCREnabled && cfg.Extraction.OCREndpoint == "" {
		return nil, errors.New("OCR_ENDPOINT is required when OCR_ENABLED is set")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
