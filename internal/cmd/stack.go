package cmd

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/config"
	"github.com/riftlens/riftlens/internal/core/analysis"
	"github.com/riftlens/riftlens/internal/core/engine"
	"github.com/riftlens/riftlens/internal/core/match"
	"github.com/riftlens/riftlens/internal/core/riot"
	"github.com/riftlens/riftlens/internal/core/session"
	"github.com/riftlens/riftlens/internal/core/stages"
	"github.com/riftlens/riftlens/internal/core/staticdata"
	"github.com/riftlens/riftlens/internal/core/store"
	"github.com/riftlens/riftlens/internal/core/upstream"
	"github.com/riftlens/riftlens/internal/observability"
)

// stack is every component behind a match session, wired in dependency
// order. serve and match build the same stack.
type stack struct {
	store    *store.Store
	limiter  *engine.RateLimiter
	client   *upstream.Client
	queue    *engine.DispatchQueue
	api      *riot.API
	catalog  *staticdata.Catalog
	analyzer *analysis.Analyzer
	registry *session.Registry
	resolver *match.Resolver
}

func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	if cfg.Upstream.APIKey == "" {
		observability.Warn("No upstream API key configured; set " + config.EnvPrefix + "_UPSTREAM_API_KEY")
	}

	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	limiter, err := engine.NewRateLimiter(engine.LimiterConfig{
		Windows: cfg.Quota.RateWindows(),
		Margin:  cfg.Quota.Margin,
		Store:   db,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := limiter.Restore(ctx); err != nil {
		// a lost backoff is recovered by the next 429
		observability.Warn("Failed to restore rate limit state", zap.Error(err))
	}

	client := upstream.New(upstream.Options{
		APIKey:    cfg.Upstream.APIKey,
		UserAgent: cfg.Upstream.UserAgent,
		HTTP:      &http.Client{Timeout: cfg.Upstream.Timeout},
		Breaker: upstream.BreakerSettings{
			MaxFailures: cfg.Upstream.Breaker.MaxFailures,
			OpenTimeout: cfg.Upstream.Breaker.OpenTimeout,
			Interval:    cfg.Upstream.Breaker.Interval,
		},
	})
	queue := engine.NewDispatchQueue(limiter, client, engine.QueueOptions{
		CallTimeout: cfg.Quota.CallTimeout,
	})
	api := riot.New(queue, riot.Config{
		BaseURL:       cfg.Upstream.BaseURL,
		StaticBaseURL: cfg.Upstream.StaticBaseURL,
		Locale:        cfg.Static.Locale,
	})

	catalog := staticdata.New(staticdata.Options{
		Source: api,
		Store:  db,
		Region: cfg.DefaultRegion,
	})

	opts := stages.Options{
		API:     api,
		Store:   db,
		Catalog: catalog,
		Freshness: stages.Freshness{
			League:   cfg.Pipeline.Freshness.League,
			Champion: cfg.Pipeline.Freshness.Champion,
			Roles:    cfg.Pipeline.Freshness.Roles,
		},
		TopChampions: cfg.Pipeline.TopChampions,
		Season:       cfg.Pipeline.Season,
		Queue:        cfg.Pipeline.Queue,
		Retry: stages.RetryPolicy{
			Attempts: cfg.Pipeline.Retry.Attempts,
			Delay:    cfg.Pipeline.Retry.Delay,
		},
	}
	var analyzer *analysis.Analyzer
	if cfg.Pipeline.Analysis.Enabled {
		analyzer = analysis.New(analysis.Options{
			API:          api,
			Store:        db,
			Backlog:      cfg.Pipeline.Analysis.Backlog,
			MaxPerSubmit: cfg.Pipeline.Analysis.MaxPerSummoner,
		})
		opts.Analyzer = analyzer
	}
	pipeline := stages.NewPipeline(opts)
	registry := session.NewRegistry(session.RegistryOptions{
		Pipeline:    pipeline,
		TTL:         cfg.Sessions.TTL,
		MaxSessions: cfg.Sessions.MaxSessions,
	})

	return &stack{
		store:    db,
		limiter:  limiter,
		client:   client,
		queue:    queue,
		api:      api,
		catalog:  catalog,
		analyzer: analyzer,
		registry: registry,
		resolver: match.NewResolver(api, cfg.DefaultRegion, nil),
	}, nil
}

// loadCatalog performs the initial catalog refresh. A failure is not fatal:
// sessions fail their core stage until a scheduled refresh succeeds.
func (s *stack) loadCatalog(ctx context.Context) {
	if err := s.catalog.Refresh(ctx); err != nil {
		observability.Warn("Champion catalog unavailable", zap.Error(err))
	}
}

// close stops sessions first so no stage enqueues into a closed queue, then
// the analyzer, then drains the queue and closes the store.
func (s *stack) close(ctx context.Context) error {
	s.registry.Close()
	var analyzerErr error
	if s.analyzer != nil {
		analyzerErr = s.analyzer.Close(ctx)
	}
	queueErr := s.queue.Close(ctx)
	storeErr := s.store.Close()
	return errors.Join(analyzerErr, queueErr, storeErr)
}
