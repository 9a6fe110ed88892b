package config

import (
	"time"

	"github.com/riftlens/riftlens/internal/core"
)

// Config represents the complete application configuration. Values are
// layered by viper: defaults, then the config file, then RIFTLENS_*
// environment variables, then flags and runtime overrides.
type Config struct {
	Server        ServerConfig   `mapstructure:"server"`
	Store         StoreConfig    `mapstructure:"store"`
	Upstream      UpstreamConfig `mapstructure:"upstream"`
	Quota         QuotaConfig    `mapstructure:"quota"`
	Sessions      SessionsConfig `mapstructure:"sessions"`
	Pipeline      PipelineConfig `mapstructure:"pipeline"`
	Static        StaticConfig   `mapstructure:"static"`
	DefaultRegion string         `mapstructure:"default_region"`
	Logging       LoggingConfig  `mapstructure:"logging"`
	Metrics       MetricsConfig  `mapstructure:"metrics"`
	Health        HealthConfig   `mapstructure:"health"`
	Debug         DebugConfig    `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// InboundRate and InboundBurst throttle match requests per websocket.
	InboundRate  float64 `mapstructure:"inbound_rate"`
	InboundBurst int     `mapstructure:"inbound_burst"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// UpstreamConfig configures the game data provider.
type UpstreamConfig struct {
	// BaseURL may contain {region}.
	BaseURL       string        `mapstructure:"base_url"`
	StaticBaseURL string        `mapstructure:"static_base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig configures the upstream circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
	Interval    time.Duration `mapstructure:"interval"`
}

// QuotaConfig describes the provider's rate windows.
type QuotaConfig struct {
	Windows     []RateWindowConfig `mapstructure:"windows"`
	Margin      time.Duration      `mapstructure:"margin"`
	CallTimeout time.Duration      `mapstructure:"call_timeout"`
}

// RateWindowConfig is one configured rate window.
type RateWindowConfig struct {
	MaxCalls int           `mapstructure:"max_calls"`
	Window   time.Duration `mapstructure:"window"`
}

// RateWindows converts the configured windows.
func (q QuotaConfig) RateWindows() []core.RateWindow {
	out := make([]core.RateWindow, 0, len(q.Windows))
	for _, w := range q.Windows {
		out = append(out, core.RateWindow{MaxCalls: w.MaxCalls, Window: w.Window})
	}
	return out
}

// SessionsConfig bounds the live session registry.
type SessionsConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	MaxSessions int           `mapstructure:"max_sessions"`
	SendBuffer  int           `mapstructure:"send_buffer"`
}

// PipelineConfig tunes the enrichment stages.
type PipelineConfig struct {
	Freshness    FreshnessConfig `mapstructure:"freshness"`
	TopChampions int             `mapstructure:"top_champions"`
	Season       string          `mapstructure:"season"`
	Queue        string          `mapstructure:"queue"`
	Retry        RetryConfig     `mapstructure:"retry"`
	Analysis     AnalysisConfig  `mapstructure:"analysis"`
}

// FreshnessConfig sets how long stored data is trusted per kind.
type FreshnessConfig struct {
	League   time.Duration `mapstructure:"league"`
	Champion time.Duration `mapstructure:"champion"`
	Roles    time.Duration `mapstructure:"roles"`
}

// RetryConfig controls stage-level retry of transient upstream failures.
type RetryConfig struct {
	Attempts uint          `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

// AnalysisConfig controls background detailed-match fetches. Detail calls
// share the upstream quota with the stages.
type AnalysisConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	MaxPerSummoner int  `mapstructure:"max_per_summoner"`
	Backlog        int  `mapstructure:"backlog"`
}

// StaticConfig controls the champion catalog.
type StaticConfig struct {
	// Refresh is a cron spec.
	Refresh string `mapstructure:"refresh"`
	Locale  string `mapstructure:"locale"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
