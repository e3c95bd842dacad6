// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joelkehle/prd2tc/internal/chunker"
	"github.com/joelkehle/prd2tc/internal/extraction"
	"github.com/joelkehle/prd2tc/internal/llm"
)

type Config struct {
	AI         llm.Config
	Extraction ExtractionConfig

	DatabasePath string
	HTTPAddr     string
	LogLevel     slog.Level
	LogFormat    string
	OTLPEndpoint string
}

type ExtractionConfig struct {
	DecisionThreshold   int
	ChunkBudget         int
	Parallelism         int
	RequestTimeout      time.Duration
	ChunkTemperature    float64
	ChunkMaxTokens      int
	DocumentTemperature float64
	DocumentMaxTokens   int
}

// Options converts the settings for the orchestrator.
func (e ExtractionConfig) Options(logger *slog.Logger) extraction.Options {
	return extraction.Options{
		DecisionThreshold:   e.DecisionThreshold,
		ChunkBudget:         e.ChunkBudget,
		RequestTimeout:      e.RequestTimeout,
		ChunkTemperature:    e.ChunkTemperature,
		ChunkMaxTokens:      e.ChunkMaxTokens,
		DocumentTemperature: e.DocumentTemperature,
		DocumentMaxTokens:   e.DocumentMaxTokens,
		Parallelism:         e.Parallelism,
		Logger:              logger,
	}
}

// Load reads envFilePath when it exists, then the environment.
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	provider := strings.ToLower(getEnv("AI_PROVIDER", llm.ProviderOpenAI))
	cfg := &Config{
		AI: llm.Config{
			Provider: provider,
			Endpoint: getEnv("AI_API_ENDPOINT", ""),
			Model:    getEnv("AI_MODEL_NAME", ""),
			APIKey:   getEnv("AI_API_KEY", providerKey(provider)),
		},
		Extraction: ExtractionConfig{
			DecisionThreshold:   getEnvAsInt("EXTRACTION_DECISION_THRESHOLD", chunker.DefaultDecisionThreshold),
			ChunkBudget:         getEnvAsInt("EXTRACTION_CHUNK_BUDGET", chunker.DefaultChunkBudget),
			Parallelism:         getEnvAsInt("EXTRACTION_PARALLELISM", 1),
			RequestTimeout:      time.Duration(getEnvAsInt("AI_REQUEST_TIMEOUT_SECONDS", int(llm.DefaultTimeout/time.Second))) * time.Second,
			ChunkTemperature:    getEnvAsFloat("AI_CHUNK_TEMPERATURE", extraction.DefaultChunkTemperature),
			ChunkMaxTokens:      getEnvAsInt("AI_CHUNK_MAX_TOKENS", extraction.DefaultChunkMaxTokens),
			DocumentTemperature: getEnvAsFloat("AI_DOCUMENT_TEMPERATURE", extraction.DefaultDocumentTemperature),
			DocumentMaxTokens:   getEnvAsInt("AI_DOCUMENT_MAX_TOKENS", extraction.DefaultDocumentMaxTokens),
		},
		DatabasePath: getEnv("DATABASE_PATH", "prd2tc.db"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		LogLevel:     parseLevel(getEnv("LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(getEnv("LOG_FORMAT", "text")),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
	if cfg.Extraction.Parallelism < 1 {
		cfg.Extraction.Parallelism = 1
	}
	return cfg, nil
}

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func providerKey(provider string) string {
	if provider == llm.ProviderAnthropic {
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return os.Getenv("OPENAI_API_KEY")
}

func parseLevel(v string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}
