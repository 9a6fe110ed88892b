// Package config provides centralized configuration management for riftlens.
// Defaults are registered on a viper instance, which also reads the config
// file and RIFTLENS_* environment variables; the merged settings decode into
// a typed Config through mapstructure.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/riftlens/riftlens/internal/core"
)

const (
	// AppName names the config and data directories.
	AppName = "riftlens"
	// EnvPrefix prefixes environment overrides, e.g. RIFTLENS_UPSTREAM_API_KEY.
	EnvPrefix = "RIFTLENS"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// New returns a viper instance with defaults and environment binding. The
// caller decides which config file, if any, it reads.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

// BindEnv maps RIFTLENS_SECTION_KEY variables onto section.key settings.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers every known key. Keys without a default are not
// visible to AllSettings and so cannot be set from the environment.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.inbound_rate", 2.0)
	v.SetDefault("server.inbound_burst", 5)

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Upstream defaults
	v.SetDefault("upstream.base_url", "https://{region}.api.pvp.net")
	v.SetDefault("upstream.static_base_url", "https://global.api.pvp.net")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.user_agent", AppName)
	v.SetDefault("upstream.breaker.max_failures", 5)
	v.SetDefault("upstream.breaker.open_timeout", "30s")
	v.SetDefault("upstream.breaker.interval", "60s")

	// Quota defaults match a development key.
	v.SetDefault("quota.windows", []map[string]any{
		{"max_calls": 10, "window": "10s"},
		{"max_calls": 500, "window": "10m"},
	})
	v.SetDefault("quota.margin", "75ms")
	v.SetDefault("quota.call_timeout", "15s")

	// Session defaults
	v.SetDefault("sessions.ttl", "1h")
	v.SetDefault("sessions.max_sessions", 1024)
	v.SetDefault("sessions.send_buffer", 64)

	// Pipeline defaults
	v.SetDefault("pipeline.freshness.league", "3h")
	v.SetDefault("pipeline.freshness.champion", "3h")
	v.SetDefault("pipeline.freshness.roles", "24h")
	v.SetDefault("pipeline.top_champions", 5)
	v.SetDefault("pipeline.season", "SEASON2016")
	v.SetDefault("pipeline.queue", "RANKED_SOLO_5x5")
	v.SetDefault("pipeline.retry.attempts", 2)
	v.SetDefault("pipeline.retry.delay", "500ms")
	v.SetDefault("pipeline.analysis.enabled", true)
	v.SetDefault("pipeline.analysis.max_per_summoner", 10)
	v.SetDefault("pipeline.analysis.backlog", 256)

	// Static data defaults
	v.SetDefault("static.refresh", "@every 6h")
	v.SetDefault("static.locale", "en_GB")

	v.SetDefault("default_region", "euw")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
}

// Load decodes the settings held by v, applies runtime overrides and
// validates the result. It is safe to call again on config reload.
func Load(ctx context.Context, v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	if v == nil {
		v = New()
	}
	for _, overrides := range runtimeOverrides {
		if len(overrides) == 0 {
			continue
		}
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to apply runtime overrides: %w", err)
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	cfg.DefaultRegion = strings.ToLower(strings.TrimSpace(cfg.DefaultRegion))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store the loaded config
	setConfig(cfg)

	return cfg, nil
}

// Validate checks invariants the rest of the process relies on.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := core.ValidateWindows(c.Quota.RateWindows()); err != nil {
		return fmt.Errorf("quota.windows: %w", err)
	}
	if c.Quota.Margin < 0 {
		return errors.New("quota.margin must not be negative")
	}
	if c.Sessions.TTL <= 0 {
		return errors.New("sessions.ttl must be positive")
	}
	if c.Sessions.MaxSessions <= 0 {
		return errors.New("sessions.max_sessions must be positive")
	}
	if c.Sessions.SendBuffer <= 0 {
		return errors.New("sessions.send_buffer must be positive")
	}
	if c.Pipeline.TopChampions <= 0 {
		return errors.New("pipeline.top_champions must be positive")
	}
	if a := c.Pipeline.Analysis; a.Enabled && (a.MaxPerSummoner <= 0 || a.Backlog <= 0) {
		return errors.New("pipeline.analysis limits must be positive when enabled")
	}
	if c.DefaultRegion == "" {
		return errors.New("default_region is required")
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG-compliant config directory.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(AppName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(AppName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
