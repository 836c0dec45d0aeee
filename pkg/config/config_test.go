package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Extraction.MaxConcurrentMethods)
	assert.Equal(t, 30*time.Second, cfg.Extraction.MethodTimeout)
	assert.False(t, cfg.Extraction.EuropeanAmounts)
	assert.False(t, cfg.Extraction.OCREnabled)
	assert.Equal(t, 0.5, cfg.Fusion.MinConfidence)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, ".bankfuse-cache", cfg.Cache.Dir)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EXTRACT_MAX_CONCURRENT", "2")
	t.Setenv("EXTRACT_METHOD_TIMEOUT", "5s")
	t.Setenv("EXTRACT_EUROPEAN_AMOUNTS", "true")
	t.Setenv("FUSION_MIN_CONFIDENCE", "0.65")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Extraction.MaxConcurrentMethods)
	assert.Equal(t, 5*time.Second, cfg.Extraction.MethodTimeout)
	assert.True(t, cfg.Extraction.EuropeanAmounts)
	assert.Equal(t, 0.65, cfg.Fusion.MinConfidence)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("EXTRACT_MAX_CONCURRENT", "not-a-number")
	t.Setenv("CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Extraction.MaxConcurrentMethods)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
}

func TestLoadOCRRequiresEndpoint(t *testing.T) {
	t.Setenv("OCR_ENABLED", "true")
	t.Setenv("OCR_ENDPOINT", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("OCR_ENDPOINT", "http://localhost:8884/recognize")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Extraction.OCREnabled)
}
