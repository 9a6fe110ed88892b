package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/riftlens/riftlens/internal/config"
	"github.com/riftlens/riftlens/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, effective configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		version := crucible.GetVersion()

		logger.Info("=== riftlens Environment Information ===")
		logger.Info("")

		logger.Info("Application:")
		logger.Info("  Version:    " + versionInfo.Version)
		logger.Info("  Commit:     " + versionInfo.Commit)
		logger.Info("  Built:      " + versionInfo.BuildDate)
		logger.Info("")

		logger.Info("SSOT:")
		logger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		logger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		logger.Info("")

		logger.Info("Runtime:")
		logger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		logger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		logger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		logger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		logger.Info("")

		cfg, err := config.Load(cmd.Context(), v)
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return
		}

		logger.Info("Configuration:")
		logger.Info("  Config File:    "+v.ConfigFileUsed(), zap.String("config_file", v.ConfigFileUsed()))
		logger.Info(fmt.Sprintf("  Server:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		logger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		logger.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			logger.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			logger.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		logger.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		logger.Info("")

		logger.Info("Upstream:")
		logger.Info("  Base URL:       " + cfg.Upstream.BaseURL)
		logger.Info("  Default Region: " + cfg.DefaultRegion)
		if strings.TrimSpace(cfg.Upstream.APIKey) != "" {
			logger.Info("  API Key:        (set)")
		} else {
			logger.Info("  API Key:        (not set; " + config.EnvPrefix + "_UPSTREAM_API_KEY)")
		}
		for _, w := range cfg.Quota.Windows {
			logger.Info(fmt.Sprintf("  Quota Window:   %d calls / %s", w.MaxCalls, w.Window))
		}
		logger.Info("  Quota Margin:   " + cfg.Quota.Margin.String())
		logger.Info("")

		logger.Info("Sessions:")
		logger.Info("  TTL:            " + cfg.Sessions.TTL.String())
		logger.Info(fmt.Sprintf("  Max Sessions:   %d", cfg.Sessions.MaxSessions))
		logger.Info("  Catalog Cron:   " + cfg.Static.Refresh)
		logger.Info("")

		logger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
