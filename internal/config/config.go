package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all toneroute configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Rule table source
	Rules RulesConfig `yaml:"rules"`

	// Corpus signature aggregation
	Signature SignatureConfig `yaml:"signature"`

	// Per-user routing preferences
	Preferences PreferencesConfig `yaml:"preferences"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PreferencesConfig locates the per-user preferences store.
type PreferencesConfig struct {
	// Path to the JSON preferences file. Empty disables stored preferences.
	Path string `yaml:"path"`
}

// RulesConfig selects the rule table.
type RulesConfig struct {
	// Path to a YAML rule table. Empty means the embedded default table.
	Path string `yaml:"path"`
}

// SignatureConfig tunes corpus signature extraction.
type SignatureConfig struct {
	Workers        int `yaml:"workers"`          // Parallel analyze calls (default: 4)
	TopWords       int `yaml:"top_words"`        // Frequent words kept (default: 10)
	TopPhrases     int `yaml:"top_phrases"`      // Frequent phrases kept (default: 10)
	MinPhraseCount int `yaml:"min_phrase_count"` // Occurrences before a phrase counts (default: 2)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "toneroute",
		Version: "0.3.0",

		Signature: SignatureConfig{
			Workers:        4,
			TopWords:       10,
			TopPhrases:     10,
			MinPhraseCount: 2,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// Override with environment variables
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
	if path := os.Getenv("TONEROUTE_RULES"); path != "" {
		c.Rules.Path = path
	}
	if prefs := os.Getenv("TONEROUTE_PREFS"); prefs != "" {
		c.Preferences.Path = prefs
	}
	if level := os.Getenv("TONEROUTE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if debug := os.Getenv("TONEROUTE_DEBUG"); debug != "" {
		if on, err := strconv.ParseBool(debug); err == nil {
			c.Logging.DebugMode = on
		}
	}
	if workers := os.Getenv("TONEROUTE_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			c.Signature.Workers = n
		}
	}
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Signature.Workers < 1 {
		return fmt.Errorf("signature.workers must be >= 1, got %d", c.Signature.Workers)
	}
	if c.Signature.TopWords < 0 || c.Signature.TopPhrases < 0 {
		return fmt.Errorf("signature.top_words and signature.top_phrases must be >= 0")
	}
	if c.Signature.MinPhraseCount < 1 {
		return fmt.Errorf("signature.min_phrase_count must be >= 1, got %d", c.Signature.MinPhraseCount)
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s (valid: text, json)", c.Logging.Format)
	}

	return nil
}
