package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, IndexMemory, cfg.IndexBackend)
	assert.Equal(t, 100, cfg.ChunkTargetTokens)
	assert.Equal(t, 20, cfg.ChunkOverlapTokens)
	assert.Equal(t, 20, cfg.IngestBatchSize)
	assert.Equal(t, 4, cfg.TopK)
	assert.Equal(t, 2, cfg.MaxRewrites)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SOURCEQA_HTTP_ADDR", ":9090")
	t.Setenv("SOURCEQA_LLM_PROVIDER", "ollama")
	t.Setenv("SOURCEQA_TOP_K", "8")
	t.Setenv("SOURCEQA_SCORE_THRESHOLD", "0.5")
	t.Setenv("SOURCEQA_FETCH_TIMEOUT", "5s")
	t.Setenv("SOURCEQA_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, ProviderOllama, cfg.LLMProvider)
	assert.Equal(t, 8, cfg.TopK)
	assert.Equal(t, 0.5, cfg.ScoreThreshold)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sourceqa.yaml")
	yaml := `
http_addr: ":7070"
max_rewrites: 5
seed_sources:
  - url: https://example.com/docs
    description: Example docs
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	t.Setenv("SOURCEQA_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, 5, cfg.MaxRewrites)
	require.Len(t, cfg.SeedSources, 1)
	assert.Equal(t, "https://example.com/docs", cfg.SeedSources[0].URL)
	assert.Equal(t, "Example docs", cfg.SeedSources[0].Description)
}

func TestValidate(t *testing.T) {
	base := Config{
		ChunkTargetTokens:  100,
		ChunkOverlapTokens: 20,
		IngestBatchSize:    20,
		IndexBackend:       IndexMemory,
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base.Validate())
	})

	t.Run("overlap not smaller than target", func(t *testing.T) {
		cfg := base
		cfg.ChunkOverlapTokens = 100
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero batch size", func(t *testing.T) {
		cfg := base
		cfg.IngestBatchSize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown index backend", func(t *testing.T) {
		cfg := base
		cfg.IndexBackend = "redis"
		assert.Error(t, cfg.Validate())
	})
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}
