package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("TONEROUTE_RULES sets rule table path", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TONEROUTE_RULES", "/tmp/rules.yaml")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/rules.yaml", cfg.Rules.Path)
	})

	t.Run("TONEROUTE_PREFS sets preferences path", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TONEROUTE_PREFS", "/tmp/prefs.json")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/prefs.json", cfg.Preferences.Path)
	})

	t.Run("TONEROUTE_LOG_LEVEL overrides level", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TONEROUTE_LOG_LEVEL", "debug")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("TONEROUTE_DEBUG parses booleans", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TONEROUTE_DEBUG", "true")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Logging.DebugMode)
	})

	t.Run("invalid TONEROUTE_DEBUG is ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TONEROUTE_DEBUG", "maybe")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.False(t, cfg.Logging.DebugMode)
	})

	t.Run("TONEROUTE_WORKERS overrides worker count", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TONEROUTE_WORKERS", "16")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, 16, cfg.Signature.Workers)
	})

	t.Run("empty values leave defaults", func(t *testing.T) {
		clearEnv(t)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "", cfg.Rules.Path)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, 4, cfg.Signature.Workers)
	})
}
