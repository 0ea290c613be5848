// Package config holds all runtime configuration, loaded from the
// environment with an optional YAML overlay, plus logger construction.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Index backends.
const (
	IndexMemory  = "memory"
	IndexSurreal = "surrealdb"
)

// SeedSource is a URL ingested automatically at server startup.
type SeedSource struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

// Config holds all configuration values.
type Config struct {
	// HTTP server
	HTTPAddr string `yaml:"http_addr"`

	// LLM
	LLMProvider     Provider `yaml:"llm_provider"`
	LLMModel        string   `yaml:"llm_model"`
	OpenAIAPIKey    string   `yaml:"-"`
	AnthropicAPIKey string   `yaml:"-"`
	OllamaHost      string   `yaml:"ollama_host"`
	LLMMaxRetries   int      `yaml:"llm_max_retries"`

	// Embeddings
	EmbedProvider  Provider `yaml:"embed_provider"`
	EmbedModel     string   `yaml:"embed_model"`
	EmbedDimension int      `yaml:"embed_dimension"`

	// Index backend
	IndexBackend       string `yaml:"index_backend"`
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"-"`

	// Chunking (fatal at startup if overlap >= target, see Validate)
	ChunkTargetTokens  int `yaml:"chunk_target_tokens"`
	ChunkOverlapTokens int `yaml:"chunk_overlap_tokens"`

	// Ingestion
	IngestBatchSize   int `yaml:"ingest_batch_size"`
	IngestConcurrency int `yaml:"ingest_concurrency"`

	// Fetching
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	FetchRatePerSec float64       `yaml:"fetch_rate_per_sec"`
	UserAgent       string        `yaml:"user_agent"`

	// Retrieval / workflow
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
	MaxRewrites    int     `yaml:"max_rewrites"`

	// Startup seeds
	SeedSources []SeedSource `yaml:"seed_sources"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables, after loading a
// .env file if present. If SOURCEQA_CONFIG points at a YAML file (or
// ./sourceqa.yaml exists) its values overlay the environment defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr: getEnv("SOURCEQA_HTTP_ADDR", ":8080"),

		LLMProvider:     Provider(getEnv("SOURCEQA_LLM_PROVIDER", string(ProviderOpenAI))),
		LLMModel:        getEnv("SOURCEQA_LLM_MODEL", "gpt-4.1"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		LLMMaxRetries:   getEnvInt("SOURCEQA_LLM_MAX_RETRIES", 2),

		EmbedProvider:  Provider(getEnv("SOURCEQA_EMBED_PROVIDER", string(ProviderOpenAI))),
		EmbedModel:     getEnv("SOURCEQA_EMBED_MODEL", "text-embedding-3-small"),
		EmbedDimension: getEnvInt("SOURCEQA_EMBED_DIMENSION", 1536),

		IndexBackend:       getEnv("SOURCEQA_INDEX_BACKEND", IndexMemory),
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "sourceqa"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "rag"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),

		ChunkTargetTokens:  getEnvInt("SOURCEQA_CHUNK_TARGET_TOKENS", 100),
		ChunkOverlapTokens: getEnvInt("SOURCEQA_CHUNK_OVERLAP_TOKENS", 20),

		IngestBatchSize:   getEnvInt("SOURCEQA_INGEST_BATCH_SIZE", 20),
		IngestConcurrency: getEnvInt("SOURCEQA_INGEST_CONCURRENCY", 4),

		FetchTimeout:    getEnvDuration("SOURCEQA_FETCH_TIMEOUT", 30*time.Second),
		FetchRatePerSec: getEnvFloat("SOURCEQA_FETCH_RATE_PER_SEC", 2),
		UserAgent:       getEnv("SOURCEQA_USER_AGENT", "sourceqa/1.0 (+https://github.com/tgruber/sourceqa)"),

		TopK:           getEnvInt("SOURCEQA_TOP_K", 4),
		ScoreThreshold: getEnvFloat("SOURCEQA_SCORE_THRESHOLD", 0.3),
		MaxRewrites:    getEnvInt("SOURCEQA_MAX_REWRITES", 2),

		LogFile:  getEnv("SOURCEQA_LOG_FILE", "/tmp/sourceqa.log"),
		LogLevel: parseLogLevel(getEnv("SOURCEQA_LOG_LEVEL", "INFO")),
	}

	path := os.Getenv("SOURCEQA_CONFIG")
	if path == "" {
		if _, err := os.Stat("sourceqa.yaml"); err == nil {
			path = "sourceqa.yaml"
		}
	}
	if path != "" {
		if err := overlayYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with. These are
// startup-fatal, never per-request failures.
func (c Config) Validate() error {
	if c.ChunkOverlapTokens >= c.ChunkTargetTokens {
		return fmt.Errorf("config: chunk overlap (%d) must be smaller than chunk target size (%d)",
			c.ChunkOverlapTokens, c.ChunkTargetTokens)
	}
	if c.ChunkTargetTokens <= 0 {
		return fmt.Errorf("config: chunk target size must be positive, got %d", c.ChunkTargetTokens)
	}
	if c.IngestBatchSize <= 0 {
		return fmt.Errorf("config: ingest batch size must be positive, got %d", c.IngestBatchSize)
	}
	if c.IndexBackend != IndexMemory && c.IndexBackend != IndexSurreal {
		return fmt.Errorf("config: unknown index backend %q", c.IndexBackend)
	}
	return nil
}

func overlayYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
