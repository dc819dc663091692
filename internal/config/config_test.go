package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FEEDBACK_LAB_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Storage.Driver != "memory" || cfg.Storage.ListLimit != 1000 {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.LLM.Model != "gpt-4o" || cfg.LLM.SystemMessage != DefaultSystemMessage {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if !cfg.Validation.EnforceScoreRange || cfg.Validation.MinScore != 1 || cfg.Validation.MaxScore != 5 {
		t.Fatalf("unexpected validation defaults: %+v", cfg.Validation)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(`server:
  address: ":9000"
  gracefulTimeout: 3s
storage:
  driver: sqlite
  dsn: "file:lab.db"
llm:
  model: "gpt-4o-mini"
cors:
  allowedOrigins: ["https://lab.example"]
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LLM_API_KEY", "secret")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("FEEDBACK_LAB_ENFORCE_SCORE_RANGE", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9000" || cfg.Server.GracefulTimeout != 3*time.Second {
		t.Fatalf("server section not applied: %+v", cfg.Server)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "file:lab.db" {
		t.Fatalf("storage section not applied: %+v", cfg.Storage)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.APIKey != "secret" {
		t.Fatalf("llm section not applied: %+v", cfg.LLM)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("cors env override not applied: %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Validation.EnforceScoreRange {
		t.Fatalf("expected score range enforcement disabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsSQLWithoutDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.Storage.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
	cfg.Storage.Driver = "mongo"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestValidateCacheDriver(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Cache.Driver != "memory" || cfg.Cache.ResponseTTL != 24*time.Hour {
		t.Fatalf("unexpected cache defaults: %+v", cfg.Cache)
	}
	cfg.Cache.Driver = "valkey"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for valkey without addr")
	}
	cfg.Cache.Addr = "localhost:6379"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Cache.Driver = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unsupported cache driver")
	}
}
