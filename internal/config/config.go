// Package config loads and watches the ilochat configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all ilochat configuration.
type Config struct {
	// Backend API connection
	Backend BackendConfig `yaml:"backend"`

	// Terminal UI settings
	UI UIConfig `yaml:"ui"`

	// Saved session transcripts
	Session SessionConfig `yaml:"session"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig configures the learning design backend connection.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	// Locale for taxonomy display names: zh_HK, en_US or zh_CN.
	Locale string `yaml:"locale"`
	Token  string `yaml:"token"`
	// Timeout for taxonomy list calls. Chat, generation and analysis
	// calls carry no timeout; they run to completion.
	ListTimeout string `yaml:"list_timeout"`
}

// UIConfig configures the terminal interface.
type UIConfig struct {
	Theme         string `yaml:"theme"` // dark, light
	ShowTimestamp bool   `yaml:"show_timestamp"`
}

// SessionConfig configures transcript persistence.
type SessionConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the category file loggers.
type LoggingConfig struct {
	DebugMode  bool     `yaml:"debug_mode"`
	Level      string   `yaml:"level"` // debug, info, warn, error
	Categories []string `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:     "http://localhost:5000",
			Locale:      "zh_HK",
			ListTimeout: "30s",
		},
		UI: UIConfig{
			Theme: "dark",
		},
		Session: SessionConfig{
			DatabasePath: filepath.Join(Dir(), "sessions.db"),
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Dir returns the ilochat configuration directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ilochat"
	}
	return filepath.Join(home, ".ilochat")
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("ILOCHAT_BASE_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if locale := os.Getenv("ILOCHAT_LOCALE"); locale != "" {
		c.Backend.Locale = locale
	}
	if token := os.Getenv("LDS_TOKEN"); token != "" {
		c.Backend.Token = token
	}
	if path := os.Getenv("ILOCHAT_DB"); path != "" {
		c.Session.DatabasePath = path
	}
}

// GetListTimeout returns the taxonomy list timeout as a duration.
func (c *Config) GetListTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.ListTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValidLocales lists the locales the backend serves translations for.
var ValidLocales = []string{"zh_HK", "en_US", "zh_CN"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url not configured (set it in config.yaml or ILOCHAT_BASE_URL)")
	}

	validLocale := false
	for _, l := range ValidLocales {
		if c.Backend.Locale == l {
			validLocale = true
			break
		}
	}
	if !validLocale {
		return fmt.Errorf("invalid locale: %s (valid: %v)", c.Backend.Locale, ValidLocales)
	}

	return nil
}
