package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Backend.BaseURL != "http://localhost:5000" {
		t.Errorf("expected BaseURL=http://localhost:5000, got %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Locale != "zh_HK" {
		t.Errorf("expected Locale=zh_HK, got %s", cfg.Backend.Locale)
	}
	if cfg.GetListTimeout() != 30*time.Second {
		t.Errorf("expected ListTimeout=30s, got %v", cfg.GetListTimeout())
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("ILOCHAT_BASE_URL", "")
	t.Setenv("ILOCHAT_LOCALE", "")
	t.Setenv("LDS_TOKEN", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Backend.BaseURL = "https://lds.example.edu"
	cfg.Backend.Locale = "en_US"
	cfg.Backend.Token = "tok-test"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Backend.BaseURL != "https://lds.example.edu" {
		t.Errorf("expected BaseURL=https://lds.example.edu, got %s", loaded.Backend.BaseURL)
	}
	if loaded.Backend.Locale != "en_US" {
		t.Errorf("expected Locale=en_US, got %s", loaded.Backend.Locale)
	}
	if loaded.Backend.Token != "tok-test" {
		t.Errorf("expected Token=tok-test, got %s", loaded.Backend.Token)
	}
}

func TestConfig_LoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ILOCHAT_BASE_URL", "")
	t.Setenv("ILOCHAT_LOCALE", "")
	t.Setenv("LDS_TOKEN", "")
	t.Setenv("ILOCHAT_DB", "")

	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.BaseURL != DefaultConfig().Backend.BaseURL {
		t.Errorf("expected default BaseURL, got %s", cfg.Backend.BaseURL)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	os.Setenv("ILOCHAT_BASE_URL", "http://backend:5000")
	defer os.Unsetenv("ILOCHAT_BASE_URL")

	os.Setenv("LDS_TOKEN", "env-token")
	defer os.Unsetenv("LDS_TOKEN")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Backend.BaseURL != "http://backend:5000" {
		t.Errorf("expected BaseURL=http://backend:5000, got %s", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Token != "env-token" {
		t.Errorf("expected Token=env-token, got %s", cfg.Backend.Token)
	}
}

func TestConfig_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("ILOCHAT_BASE_URL", "")
	t.Setenv("ILOCHAT_LOCALE", "")
	t.Setenv("LDS_TOKEN", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := "backend:\n  locale: zh_CN\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.Locale != "zh_CN" {
		t.Errorf("expected Locale=zh_CN, got %s", cfg.Backend.Locale)
	}
	if cfg.Backend.BaseURL != "http://localhost:5000" {
		t.Errorf("expected default BaseURL to survive partial file, got %s", cfg.Backend.BaseURL)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}

	cfg.Backend.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing base_url")
	}

	cfg = DefaultConfig()
	cfg.Backend.Locale = "fr_FR"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown locale")
	}
}

func TestConfig_BadListTimeoutFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.ListTimeout = "not-a-duration"
	if cfg.GetListTimeout() != 30*time.Second {
		t.Errorf("expected fallback to 30s, got %v", cfg.GetListTimeout())
	}
}
