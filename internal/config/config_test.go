package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/basket/mnemo/internal/config"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := config.Default()
	if cfg != def {
		t.Fatalf("got %+v, want defaults %+v", cfg, def)
	}
}

func TestLoad_OverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "graphiti:\n  baseUrl: http://localhost:6379\nnarrative:\n  autoBootstrapHistory: true\ndebug: true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Graphiti.BaseURL != "http://localhost:6379" {
		t.Fatalf("BaseURL = %q", cfg.Graphiti.BaseURL)
	}
	if !cfg.Narrative.AutoBootstrapHistory {
		t.Fatalf("AutoBootstrapHistory should be true")
	}
	if cfg.Narrative.Threshold != 5000 {
		t.Fatalf("Threshold should retain default 5000, got %d", cfg.Narrative.Threshold)
	}
	if !cfg.Debug {
		t.Fatalf("Debug should be true")
	}
}

func TestSkipResonance_EnvVar(t *testing.T) {
	os.Unsetenv(config.SkipResonanceEnvVar)
	if config.SkipResonance() {
		t.Fatalf("expected false with env unset")
	}
	os.Setenv(config.SkipResonanceEnvVar, "1")
	defer os.Unsetenv(config.SkipResonanceEnvVar)
	if !config.SkipResonance() {
		t.Fatalf("expected true with env set to 1")
	}
}
