package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 8, cfg.MatchWorkers)
	assert.Equal(t, 10, cfg.ExclusionInlineMax)
	assert.Equal(t, 500, cfg.CandidateFetchLimit)
	assert.Equal(t, float64(1000), cfg.AreaPriorityBoost)
	assert.Equal(t, 15*time.Second, cfg.MatchRunTimeout)
	assert.Equal(t, "lexicon", cfg.NormalizerProvider)
	assert.Equal(t, 3*time.Second, cfg.NormalizerTimeout)
	assert.Equal(t, 24*time.Hour, cfg.NormalizerCacheTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MATCH_WORKERS", "4")
	t.Setenv("MATCH_EXCLUSION_INLINE_MAX", "25")
	t.Setenv("MATCH_AREA_PRIORITY_BOOST", "500")
	t.Setenv("MATCH_RUN_TIMEOUT", "30s")
	t.Setenv("NORMALIZER_PROVIDER", "http")
	t.Setenv("NORMALIZER_ENDPOINT", "http://geo.internal:9000")

	cfg := Load()

	assert.Equal(t, 4, cfg.MatchWorkers)
	assert.Equal(t, 25, cfg.ExclusionInlineMax)
	assert.Equal(t, float64(500), cfg.AreaPriorityBoost)
	assert.Equal(t, 30*time.Second, cfg.MatchRunTimeout)
	assert.Equal(t, "http", cfg.NormalizerProvider)
	require.NoError(t, cfg.Validate())
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MATCH_WORKERS", "not a number")
	t.Setenv("MATCH_RUN_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 8, cfg.MatchWorkers)
	assert.Equal(t, 15*time.Second, cfg.MatchRunTimeout)
}

func TestValidate(t *testing.T) {
	base := func() *Config { return Load() }

	t.Run("database url required", func(t *testing.T) {
		cfg := base()
		cfg.DatabaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("workers must be positive", func(t *testing.T) {
		cfg := base()
		cfg.MatchWorkers = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("http provider needs endpoint", func(t *testing.T) {
		cfg := base()
		cfg.NormalizerProvider = "http"
		cfg.NormalizerEndpoint = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		cfg := base()
		cfg.NormalizerProvider = "oracle"
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown log format rejected", func(t *testing.T) {
		cfg := base()
		cfg.LogFormat = "xml"
		assert.Error(t, cfg.Validate())
	})
}
