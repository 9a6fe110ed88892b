package cmd

import (
	"context"
	"sort"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/riftlens/riftlens/internal/errors"
	"github.com/riftlens/riftlens/internal/observability"
	"github.com/riftlens/riftlens/internal/server/handlers"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify that configuration loads and the store is reachable, using the same checks serve exposes on /health.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", apperrors.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
		defer cancel()

		cfg, err := loadConfig(ctx)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration valid",
			zap.String("default_region", cfg.DefaultRegion),
			zap.Int("quota_windows", len(cfg.Quota.Windows)))

		db, err := openStore(ctx, cfg.Store)
		if err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Store unavailable", err)
			return
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		hm := handlers.NewHealthManager(versionInfo.Version)
		hm.RegisterChecker("store", handlers.StoreChecker(db))
		checks, status := hm.Checks(ctx)

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			logger.Info("check "+name, zap.String("status", checks[name]))
		}

		if status != handlers.StatusHealthy {
			ExitWithCode(logger, foundry.ExitFailure, "Health check failed", apperrors.NewServiceUnavailableError("status "+status))
			return
		}

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 10*time.Second, "overall check timeout")
}
