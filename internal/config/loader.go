// Package config loads gridwright configuration with the precedence
// runtime overrides > environment > config file > defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for all gridwright environment variables.
const envPrefix = "GRIDWRIGHT"

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Health    HealthConfig    `mapstructure:"health"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	AI        AIConfig        `mapstructure:"ai"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Profile is STRUCTURED (JSON) or CONSOLE.
	Profile string `mapstructure:"profile"`
}

// HealthConfig configures the health endpoint.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WorkspaceConfig configures the in-memory validation workspace.
type WorkspaceConfig struct {
	// SnapshotPath is where explicit Save/Load persists state.
	SnapshotPath string `mapstructure:"snapshot_path"`

	// Debounce is the quiescence delay before re-validating an edited
	// row. Zero validates synchronously.
	Debounce time.Duration `mapstructure:"debounce"`
}

// AIConfig configures the suggestion producer.
type AIConfig struct {
	// APIKey enables the Gemini producer; empty falls back to the null
	// producer.
	APIKey string `mapstructure:"api_key"`

	Model string `mapstructure:"model"`

	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// AuditConfig configures the audit trail store.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Path is the SQLite database path.
	Path string `mapstructure:"path"`
}

// DebugConfig configures debug facilities.
type DebugConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// envSpec maps one environment variable to a config path.
type envSpec struct {
	// Name is the full environment variable name.
	Name string

	// Path is the dotted config key the variable overrides.
	Path string
}

// envSpecs is the canonical environment variable surface. Every
// supported variable is listed here; nothing else is consulted.
var envSpecs = []envSpec{
	{Name: envPrefix + "_HOST", Path: "server.host"},
	{Name: envPrefix + "_PORT", Path: "server.port"},
	{Name: envPrefix + "_READ_TIMEOUT", Path: "server.read_timeout"},
	{Name: envPrefix + "_WRITE_TIMEOUT", Path: "server.write_timeout"},
	{Name: envPrefix + "_IDLE_TIMEOUT", Path: "server.idle_timeout"},
	{Name: envPrefix + "_SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
	{Name: envPrefix + "_LOG_LEVEL", Path: "logging.level"},
	{Name: envPrefix + "_LOG_PROFILE", Path: "logging.profile"},
	{Name: envPrefix + "_HEALTH_ENABLED", Path: "health.enabled"},
	{Name: envPrefix + "_SNAPSHOT_PATH", Path: "workspace.snapshot_path"},
	{Name: envPrefix + "_DEBOUNCE", Path: "workspace.debounce"},
	{Name: envPrefix + "_GEMINI_API_KEY", Path: "ai.api_key"},
	{Name: envPrefix + "_GEMINI_MODEL", Path: "ai.model"},
	{Name: envPrefix + "_GEMINI_RPM", Path: "ai.requests_per_minute"},
	{Name: envPrefix + "_AUDIT_ENABLED", Path: "audit.enabled"},
	{Name: envPrefix + "_AUDIT_PATH", Path: "audit.path"},
	{Name: envPrefix + "_DEBUG", Path: "debug.enabled"},
	{Name: envPrefix + "_PPROF_ENABLED", Path: "debug.pprof_enabled"},
}

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// Load builds the configuration. Later overrides maps win over earlier
// ones; all overrides win over environment variables, which win over an
// optional gridwright.yaml config file, which wins over defaults.
//
// The loaded config is retained for GetConfig.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	// Optional config file; absence is not an error.
	v.SetConfigName("gridwright")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gridwright")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	// Runtime overrides use viper's explicit-set layer, which outranks
	// env bindings.
	for _, m := range overrides {
		for key, value := range flatten("", m) {
			v.Set(key, value)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil if
// Load has never succeeded.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// getEnvSpecs returns the environment variable surface.
func getEnvSpecs() []envSpec {
	return envSpecs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	v.SetDefault("health.enabled", true)

	v.SetDefault("workspace.snapshot_path", "")
	v.SetDefault("workspace.debounce", 300*time.Millisecond)

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.requests_per_minute", 10)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.path", "")

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

// flatten turns a nested override map into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[strings.ToLower(key)] = v
	}
	return out
}
