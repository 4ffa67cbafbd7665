package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetLogging() {
	CloseAll()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	config = loggingConfig{}
	logLevel = LevelInfo
}

// TestCategoriesLogWhenDebugEnabled tests that categories create log files
// when debug_mode is true.
func TestCategoriesLogWhenDebugEnabled(t *testing.T) {
	configDir := t.TempDir()

	configContent := `logging:
  debug_mode: true
  level: debug
  categories:
    boot: true
    taxonomy: true
    chat: true
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetLogging()
	defer resetLogging()

	if err := Initialize(configDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	Taxonomy("load completed: %d items", 5)
	Chat("turn sent")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(configDir, "logs"))
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	joined := strings.Join(names, " ")
	if !strings.Contains(joined, "taxonomy") {
		t.Errorf("Expected a taxonomy log file, got %v", names)
	}
	if !strings.Contains(joined, "chat") {
		t.Errorf("Expected a chat log file, got %v", names)
	}
}

// TestNoLogsInProductionMode tests that no files are written when
// debug_mode is false or the config file is missing.
func TestNoLogsInProductionMode(t *testing.T) {
	t.Run("missing config file", func(t *testing.T) {
		configDir := t.TempDir()

		resetLogging()
		defer resetLogging()

		if err := Initialize(configDir); err != nil {
			t.Fatalf("Failed to initialize logging: %v", err)
		}
		Taxonomy("should go nowhere")

		if _, err := os.Stat(filepath.Join(configDir, "logs")); !os.IsNotExist(err) {
			t.Error("Expected no logs directory in production mode")
		}
	})

	t.Run("debug_mode false", func(t *testing.T) {
		configDir := t.TempDir()
		if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("logging:\n  debug_mode: false\n"), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		resetLogging()
		defer resetLogging()

		if err := Initialize(configDir); err != nil {
			t.Fatalf("Failed to initialize logging: %v", err)
		}
		if IsDebugMode() {
			t.Error("Expected debug mode to be disabled")
		}
		Chat("should go nowhere")

		if _, err := os.Stat(filepath.Join(configDir, "logs")); !os.IsNotExist(err) {
			t.Error("Expected no logs directory when debug_mode is false")
		}
	})
}

// TestCategoryFilter tests that disabled categories return no-op loggers.
func TestCategoryFilter(t *testing.T) {
	configDir := t.TempDir()
	configContent := `logging:
  debug_mode: true
  level: info
  categories:
    chat: true
    taxonomy: false
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetLogging()
	defer resetLogging()

	if err := Initialize(configDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if !IsCategoryEnabled(CategoryChat) {
		t.Error("Expected chat category to be enabled")
	}
	if IsCategoryEnabled(CategoryTaxonomy) {
		t.Error("Expected taxonomy category to be disabled")
	}
	if l := Get(CategoryTaxonomy); l.logger != nil {
		t.Error("Expected a no-op logger for a disabled category")
	}
}
