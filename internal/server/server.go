package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/config"
	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/engine"
	"github.com/riftlens/riftlens/internal/core/session"
	apperrors "github.com/riftlens/riftlens/internal/errors"
	"github.com/riftlens/riftlens/internal/observability"
	servermw "github.com/riftlens/riftlens/internal/server/middleware"
)

// Resolver turns viewer requests into a live match.
type Resolver interface {
	ResolveByPlayer(ctx context.Context, name, region string) (*session.Match, error)
	ResolveAny(ctx context.Context, region string) (*session.Match, error)
}

// Sessions is the session registry as seen by the server.
type Sessions interface {
	Subscribe(conn session.Conn, m session.Match) (*session.Session, error)
	Unsubscribe(connID string) bool
	Get(matchID int64) (*session.Session, bool)
	List() []session.Snapshot
}

// Quota reports upstream quota consumption.
type Quota interface {
	Snapshot() engine.LimiterSnapshot
}

// Queue reports dispatch queue state.
type Queue interface {
	Len() int
	Closed() bool
}

// Averages reports per-champion averages over analyzed matches.
type Averages interface {
	ChampionAverages(ctx context.Context, championIDs []int64) ([]core.ChampionAverage, error)
}

// Deps are the components the routes serve.
type Deps struct {
	Sessions Sessions
	Resolver Resolver
	Limiter  Quota
	Queue    Queue
	Averages Averages

	// SendBuffer bounds each viewer's outbound queue.
	SendBuffer int
	// InboundRate and InboundBurst throttle match requests per connection.
	InboundRate  float64
	InboundBurst int
	// ResolveTimeout bounds one match resolution.
	ResolveTimeout time.Duration
}

// Defaults for zero Deps fields
const (
	DefaultSendBuffer     = 64
	DefaultInboundRate    = 2
	DefaultInboundBurst   = 5
	DefaultResolveTimeout = 60 * time.Second
)

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    config.ServerConfig
	deps   Deps

	viewers atomic.Int64
}

// New creates a new HTTP server instance
func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.SendBuffer <= 0 {
		deps.SendBuffer = DefaultSendBuffer
	}
	if deps.InboundRate <= 0 {
		deps.InboundRate = DefaultInboundRate
	}
	if deps.InboundBurst <= 0 {
		deps.InboundBurst = DefaultInboundBurst
	}
	if deps.ResolveTimeout <= 0 {
		deps.ResolveTimeout = DefaultResolveTimeout
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// RequestID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		cfg:    cfg,
		deps:   deps,
	}

	s.registerRoutes()

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  orDefault(s.cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: orDefault(s.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(s.cfg.IdleTimeout, 120*time.Second),
	}

	observability.Info("Starting HTTP server",
		zap.String("host", s.cfg.Host),
		zap.Int("port", s.cfg.Port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	observability.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.cfg.Port
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
