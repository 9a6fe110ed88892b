package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	// Test basic config loading with defaults
	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := Load(ctx, New())
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, 2.0, cfg.Server.InboundRate)
		assert.Equal(t, 5, cfg.Server.InboundBurst)

		// Verify store defaults
		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("riftlens"), "riftlens.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)
		assert.Equal(t, "", cfg.Store.URL)

		// Verify upstream defaults
		assert.Equal(t, "https://{region}.api.pvp.net", cfg.Upstream.BaseURL)
		assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
		assert.Equal(t, uint32(5), cfg.Upstream.Breaker.MaxFailures)
		assert.Equal(t, 30*time.Second, cfg.Upstream.Breaker.OpenTimeout)

		// Verify quota defaults
		require.Len(t, cfg.Quota.Windows, 2)
		assert.Equal(t, RateWindowConfig{MaxCalls: 10, Window: 10 * time.Second}, cfg.Quota.Windows[0])
		assert.Equal(t, RateWindowConfig{MaxCalls: 500, Window: 10 * time.Minute}, cfg.Quota.Windows[1])
		assert.Equal(t, 75*time.Millisecond, cfg.Quota.Margin)
		assert.Equal(t, 15*time.Second, cfg.Quota.CallTimeout)

		// Verify session and pipeline defaults
		assert.Equal(t, time.Hour, cfg.Sessions.TTL)
		assert.Equal(t, 1024, cfg.Sessions.MaxSessions)
		assert.Equal(t, 3*time.Hour, cfg.Pipeline.Freshness.League)
		assert.Equal(t, 24*time.Hour, cfg.Pipeline.Freshness.Roles)
		assert.Equal(t, 5, cfg.Pipeline.TopChampions)
		assert.Equal(t, uint(2), cfg.Pipeline.Retry.Attempts)
		assert.Equal(t, AnalysisConfig{Enabled: true, MaxPerSummoner: 10, Backlog: 256}, cfg.Pipeline.Analysis)
		assert.Equal(t, "@every 6h", cfg.Static.Refresh)
		assert.Equal(t, "euw", cfg.DefaultRegion)

		// Verify logging defaults
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "structured", cfg.Logging.Profile)

		// Verify metrics defaults
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)
		assert.False(t, cfg.Debug.Enabled)
	})

	// Test runtime overrides
	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, New(), overrides)
		require.NoError(t, err)

		// Verify overrides were applied
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Verify non-overridden values remain default
		assert.Equal(t, "structured", cfg.Logging.Profile)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	// Test environment variable overrides
	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("RIFTLENS_SERVER_PORT", "3000")
		t.Setenv("RIFTLENS_LOGGING_LEVEL", "warn")
		t.Setenv("RIFTLENS_METRICS_ENABLED", "false")
		t.Setenv("RIFTLENS_UPSTREAM_API_KEY", "secret")
		t.Setenv("RIFTLENS_QUOTA_MARGIN", "250ms")
		t.Setenv("RIFTLENS_DEFAULT_REGION", "NA")

		cfg, err := Load(ctx, New())
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, "secret", cfg.Upstream.APIKey)
		assert.Equal(t, 250*time.Millisecond, cfg.Quota.Margin)
		assert.Equal(t, "na", cfg.DefaultRegion)
	})

	// Test config precedence: runtime > env > defaults
	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("RIFTLENS_SERVER_PORT", "4000")

		overrides := map[string]any{
			"server": map[string]any{
				"port": 5000,
			},
		}

		cfg, err := Load(ctx, New(), overrides)
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
quota:
  margin: 100ms
  windows:
    - max_calls: 20
      window: 1s
    - max_calls: 100
      window: 2m
sessions:
  ttl: 30m
`), 0o600))

		v := New()
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, 100*time.Millisecond, cfg.Quota.Margin)
		assert.Equal(t, []RateWindowConfig{
			{MaxCalls: 20, Window: time.Second},
			{MaxCalls: 100, Window: 2 * time.Minute},
		}, cfg.Quota.Windows)
		assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
		assert.Equal(t, 1024, cfg.Sessions.MaxSessions)
	})
}

func TestLoadRejectsInvalid(t *testing.T) {
	ctx := context.Background()

	cases := map[string]map[string]any{
		"zero max calls": {"quota": map[string]any{"windows": []map[string]any{{"max_calls": 0, "window": "1s"}}}},
		"no windows":     {"quota": map[string]any{"windows": []map[string]any{}}},
		"zero ttl":       {"sessions": map[string]any{"ttl": "0s"}},
		"no region":      {"default_region": " "},
		"no top":         {"pipeline": map[string]any{"top_champions": 0}},
		"zero backlog":   {"pipeline": map[string]any{"analysis": map[string]any{"backlog": 0}}},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(ctx, New(), overrides)
			require.Error(t, err)
		})
	}
}

func TestRateWindows(t *testing.T) {
	q := QuotaConfig{Windows: []RateWindowConfig{{MaxCalls: 3, Window: time.Second}}}
	windows := q.RateWindows()
	require.Len(t, windows, 1)
	assert.Equal(t, 3, windows[0].MaxCalls)
	assert.Equal(t, time.Second, windows[0].Window)
}

func TestConfigReload(t *testing.T) {
	ctx := context.Background()

	cfg1, err := Load(ctx, New())
	require.NoError(t, err)
	initialPort := cfg1.Server.Port

	overrides := map[string]any{
		"server": map[string]any{
			"port": initialPort + 1000,
		},
	}

	cfg2, err := Load(ctx, New(), overrides)
	require.NoError(t, err)
	assert.Equal(t, initialPort+1000, cfg2.Server.Port)

	// Verify GetConfig returns the updated config
	current := GetConfig()
	assert.Equal(t, cfg2.Server.Port, current.Server.Port)
}
