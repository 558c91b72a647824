package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
	assert.True(t, cfg.Health.Enabled)

	assert.Equal(t, 300*time.Millisecond, cfg.Workspace.Debounce)

	// No API key by default: AI endpoints run the null producer.
	assert.Empty(t, cfg.AI.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, 10, cfg.AI.RequestsPerMinute)

	assert.False(t, cfg.Audit.Enabled)
	assert.False(t, cfg.Debug.Enabled)
	assert.False(t, cfg.Debug.PprofEnabled)
}

func TestLoadRuntimeOverrides(t *testing.T) {
	overrides := map[string]any{
		"server": map[string]any{
			"port": 9000,
			"host": "0.0.0.0",
		},
		"logging": map[string]any{
			"level": "debug",
		},
	}

	cfg, err := Load(context.Background(), overrides)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
	assert.True(t, cfg.Health.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GRIDWRIGHT_PORT", "3000")
	t.Setenv("GRIDWRIGHT_LOG_LEVEL", "warn")
	t.Setenv("GRIDWRIGHT_AUDIT_ENABLED", "true")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Audit.Enabled)
}

func TestLoadPrecedence(t *testing.T) {
	// Runtime overrides outrank env, which outranks defaults.
	t.Setenv("GRIDWRIGHT_PORT", "4000")

	cfg, err := Load(context.Background(), map[string]any{
		"server": map[string]any{"port": 5000},
	})
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("GRIDWRIGHT_READ_TIMEOUT", "45s")
	t.Setenv("GRIDWRIGHT_DEBOUNCE", "1s")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, time.Second, cfg.Workspace.Debounce)
}

func TestGetConfig(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	current := GetConfig()
	require.NotNil(t, current)
	assert.Equal(t, cfg.Server.Port, current.Server.Port)
	assert.Equal(t, cfg.Logging.Level, current.Logging.Level)

	// Reloading replaces what GetConfig returns.
	_, err = Load(context.Background(), map[string]any{
		"server": map[string]any{"port": cfg.Server.Port + 1000},
	})
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.Port+1000, GetConfig().Server.Port)
}

func TestEnvSpecs(t *testing.T) {
	specs := getEnvSpecs()
	require.NotEmpty(t, specs)

	byName := make(map[string]string, len(specs))
	for _, spec := range specs {
		assert.Contains(t, spec.Name, "GRIDWRIGHT_", "env var names carry the prefix")
		assert.NotEmpty(t, spec.Path, "env var %s needs a config path", spec.Name)
		byName[spec.Name] = spec.Path
	}

	assert.Equal(t, "server.port", byName["GRIDWRIGHT_PORT"])
	assert.Equal(t, "server.host", byName["GRIDWRIGHT_HOST"])
	assert.Equal(t, "logging.level", byName["GRIDWRIGHT_LOG_LEVEL"])
	assert.Equal(t, "ai.api_key", byName["GRIDWRIGHT_GEMINI_API_KEY"])
}
