package cmd

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riftlens/riftlens/internal/config"
	apperrors "github.com/riftlens/riftlens/internal/errors"
	"github.com/riftlens/riftlens/internal/metrics"
	"github.com/riftlens/riftlens/internal/observability"
	"github.com/riftlens/riftlens/internal/server"
	"github.com/riftlens/riftlens/internal/server/handlers"
)

// gaugeInterval is how often session and queue gauges are refreshed.
const gaugeInterval = "@every 15s"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	Long: `Start the server that resolves viewer requests to live matches and
streams enrichment results over /ws.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (logging level only; restart for other settings)

Shutdown stops the HTTP server, ends every session, drains the dispatch
queue and closes the store.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	observability.InitServerLogger(config.AppName, serverLogOptions(cfg))
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port, config.AppName); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "metrics initialization failed")
		}
	}
	startedAt := time.Now()
	metrics.SetServerStartTime(startedAt.Unix())

	logger.Info("Initializing server",
		zap.String("service", config.AppName),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("metrics_port", observability.GetMetricsPort()),
		zap.String("default_region", cfg.DefaultRegion))

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	st.loadCatalog(ctx)

	scheduler := cron.New()
	if _, err := st.catalog.Schedule(scheduler, cfg.Static.Refresh); err != nil {
		_ = st.close(ctx)
		return apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, "invalid static.refresh schedule")
	}
	if _, err := scheduler.AddFunc(gaugeInterval, func() {
		metrics.SetServerUptime(int64(time.Since(startedAt).Seconds()))
		metrics.SetActiveSessions(st.registry.Len())
		metrics.SetQueueDepth(st.queue.Len())
	}); err != nil {
		_ = st.close(ctx)
		return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "schedule gauges")
	}

	handlers.InitHealthManager(versionInfo.Version)
	hm := handlers.GetHealthManager()
	hm.RegisterChecker("store", handlers.StoreChecker(st.store))
	hm.RegisterChecker("dispatch_queue", handlers.QueueChecker(st.queue.Closed))
	hm.RegisterChecker("champion_catalog", handlers.CatalogChecker(st.catalog.Loaded))
	hm.RegisterChecker("telemetry", handlers.TelemetryChecker(cfg.Metrics.Enabled))

	srv := server.New(cfg.Server, server.Deps{
		Sessions:     st.registry,
		Resolver:     st.resolver,
		Limiter:      st.limiter,
		Queue:        st.queue,
		Averages:     st.store,
		SendBuffer:   cfg.Sessions.SendBuffer,
		InboundRate:  cfg.Server.InboundRate,
		InboundBurst: cfg.Server.InboundBurst,
	})

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		shutdownOnce sync.Once
		shutdownErr  error
	)
	shutdown := func(ctx context.Context) error {
		shutdownOnce.Do(func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			shutdownErr = shutdownAll(shutdownCtx, srv, scheduler, st)
		})
		return shutdownErr
	}

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutdown requested")
		stop()
		return shutdown(ctx)
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: attempting config reload")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				logger.Info("No config file found - using defaults and environment variables")
				return nil
			}
			logger.Error("Failed to reload config file",
				zap.String("file", v.ConfigFileUsed()),
				zap.Error(err))
			return apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, "config reload failed")
		}
		reloaded, err := config.Load(ctx, v)
		if err != nil {
			return apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, "config reload failed")
		}
		if reloaded.Logging != cfg.Logging {
			observability.InitServerLogger(config.AppName, serverLogOptions(reloaded))
		}

		observability.ServerLogger.Info("Configuration reloaded",
			zap.String("file", v.ConfigFileUsed()),
			zap.String("log_level", reloaded.Logging.Level))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	scheduler.Start()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return signals.Listen(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(ctx)
	})

	err = g.Wait()
	// Sync fails when stderr is already closed
	_ = observability.ServerLogger.Sync()
	if err != nil && !errors.Is(err, context.Canceled) {
		return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "server error")
	}
	return nil
}

// shutdownAll stops accepting viewers, then tears the stack down in reverse
// wiring order.
func shutdownAll(ctx context.Context, srv *server.Server, scheduler *cron.Cron, st *stack) error {
	logger := observability.ServerLogger

	logger.Info("Shutting down HTTP server...")
	httpErr := srv.Shutdown(ctx)

	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
	}

	logger.Info("Closing sessions and draining dispatch queue...")
	stackErr := st.close(ctx)

	metricsErr := observability.StopMetrics()

	if err := errors.Join(httpErr, stackErr, metricsErr); err != nil {
		logger.Error("Shutdown incomplete", zap.Error(err))
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")

	_ = v.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serverLogOptions(cfg *config.Config) observability.ServerLogOptions {
	return observability.ServerLogOptions{
		Level:     cfg.Logging.Level,
		Profile:   cfg.Logging.Profile,
		Namespace: config.AppName,
	}
}
