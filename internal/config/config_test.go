package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AI_PROVIDER", "AI_API_ENDPOINT", "AI_MODEL_NAME", "AI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"AI_REQUEST_TIMEOUT_SECONDS", "AI_CHUNK_TEMPERATURE", "AI_CHUNK_MAX_TOKENS",
		"AI_DOCUMENT_TEMPERATURE", "AI_DOCUMENT_MAX_TOKENS",
		"EXTRACTION_DECISION_THRESHOLD", "EXTRACTION_CHUNK_BUDGET", "EXTRACTION_PARALLELISM",
		"DATABASE_PATH", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		// Setenv registers the restore; the variable must be absent for
		// godotenv to set it.
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.Provider != "openai" || cfg.AI.APIKey != "" {
		t.Fatalf("unexpected AI config %+v", cfg.AI)
	}
	e := cfg.Extraction
	if e.DecisionThreshold != 3000 || e.ChunkBudget != 3500 || e.Parallelism != 1 || e.RequestTimeout != 60*time.Second {
		t.Fatalf("unexpected extraction config %+v", e)
	}
	if e.ChunkTemperature != 0.8 || e.ChunkMaxTokens != 3000 || e.DocumentTemperature != 0.7 || e.DocumentMaxTokens != 4000 {
		t.Fatalf("unexpected request params %+v", e)
	}
	if cfg.DatabasePath != "prd2tc.db" || cfg.HTTPAddr != ":8080" || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadEnvFileAndOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "AI_PROVIDER=anthropic\nANTHROPIC_API_KEY=ak-test\nEXTRACTION_CHUNK_BUDGET=1200\nLOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EXTRACTION_PARALLELISM", "0")
	t.Setenv("AI_CHUNK_TEMPERATURE", "not-a-number")
	t.Setenv("AI_REQUEST_TIMEOUT_SECONDS", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.Provider != "anthropic" || cfg.AI.APIKey != "ak-test" {
		t.Fatalf("unexpected AI config %+v", cfg.AI)
	}
	if cfg.Extraction.ChunkBudget != 1200 || cfg.Extraction.Parallelism != 1 {
		t.Fatalf("unexpected extraction config %+v", cfg.Extraction)
	}
	if cfg.Extraction.ChunkTemperature != 0.8 {
		t.Fatalf("bad float should fall back, got %v", cfg.Extraction.ChunkTemperature)
	}
	if cfg.Extraction.RequestTimeout != 5*time.Second || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	opts := cfg.Extraction.Options(nil)
	if opts.ChunkBudget != 1200 || opts.RequestTimeout != 5*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}
