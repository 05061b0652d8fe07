package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":8077" {
		t.Errorf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Game.InitialBudget != 120*time.Second || cfg.Game.Pellets != 40 {
		t.Errorf("unexpected game defaults: %+v", cfg.Game)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.LogLevel)
	}
}

func TestLoadFromEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "PHOTOHUNT_DB_PATH=/tmp/scores.db\nPHOTOHUNT_ROUND_BUDGET=90s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PHOTOHUNT_LOG_LEVEL", "debug")
	t.Setenv("PHOTOHUNT_HINTS", "5")
	t.Setenv("PHOTOHUNT_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("PHOTOHUNT_PELLETS", "not-a-number")
	t.Cleanup(func() {
		os.Unsetenv("PHOTOHUNT_DB_PATH")
		os.Unsetenv("PHOTOHUNT_ROUND_BUDGET")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/scores.db" {
		t.Errorf("expected db path from file, got %q", cfg.DBPath)
	}
	if cfg.Game.InitialBudget != 90*time.Second {
		t.Errorf("expected 90s budget, got %v", cfg.Game.InitialBudget)
	}
	if cfg.Game.HintsPerRound != 5 {
		t.Errorf("expected 5 hints, got %d", cfg.Game.HintsPerRound)
	}
	if cfg.Game.Pellets != 40 {
		t.Errorf("expected bad value to fall back to 40, got %d", cfg.Game.Pellets)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.LogLevel)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.AllowedOrigins)
	}
}
