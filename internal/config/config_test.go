package config_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/neomorfeo/apsconnect/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.OA.Retries != 10 {
		t.Errorf("OA.Retries = %d, want 10", cfg.OA.Retries)
	}
	if cfg.Connect.Timeout != 30*time.Second {
		t.Errorf("Connect.Timeout = %v, want 30s", cfg.Connect.Timeout)
	}
	if cfg.OTel.Exporter != "stdout" {
		t.Errorf("OTel.Exporter = %q, want %q", cfg.OTel.Exporter, "stdout")
	}
	if cfg.OTel.SampleRatio != 1 {
		t.Errorf("OTel.SampleRatio = %v, want 1", cfg.OTel.SampleRatio)
	}
	if cfg.EffectWorkers != 2 {
		t.Errorf("EffectWorkers = %d, want 2", cfg.EffectWorkers)
	}
	if cfg.DatabaseBusyTimeout != 5*time.Second {
		t.Errorf("DatabaseBusyTimeout = %v, want 5s", cfg.DatabaseBusyTimeout)
	}
	if cfg.Seed.Enabled() {
		t.Error("seed must be disabled without an OAuth key")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("SCHEMA_CACHE_TTL", "5m")
	t.Setenv("CONNECT_API_KEY", "ApiKey SU-1:x")
	t.Setenv("OA_RETRIES", "3")
	t.Setenv("OTEL_EXPORTER", "none")
	t.Setenv("INSTALLATION_OAUTH_KEY", "key")
	t.Setenv("INSTALLATION_PRODUCT_ID", "PRD-1")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.SchemaCacheTTL != 5*time.Minute {
		t.Errorf("SchemaCacheTTL = %v", cfg.SchemaCacheTTL)
	}
	if cfg.Connect.APIKey != "ApiKey SU-1:x" {
		t.Errorf("Connect.APIKey = %q", cfg.Connect.APIKey)
	}
	if cfg.OA.Retries != 3 {
		t.Errorf("OA.Retries = %d", cfg.OA.Retries)
	}
	if !cfg.Seed.Enabled() || cfg.Seed.ProductID != "PRD-1" {
		t.Errorf("Seed = %+v", cfg.Seed)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OA_RETRIES", "many")

	_, err := config.Load()
	if !errors.Is(err, config.ErrParsingConfig) {
		t.Fatalf("expected ErrParsingConfig, got %v", err)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (config.Config{LogLevel: tt.in}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
