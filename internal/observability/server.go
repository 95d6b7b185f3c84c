package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafaeljc/togglr-sdk-go/internal/config"
	"github.com/rafaeljc/togglr-sdk-go/internal/validation"
)

// Server exposes the liveness, readiness and metrics endpoints of a process
// embedding the SDK, such as `togglr watch`.
type Server struct {
	logger   *slog.Logger
	cfg      *config.ObservabilityConfig
	router   *chi.Mux
	gatherer prometheus.Gatherer
	server   *http.Server
	listener net.Listener
	checkers []Checker
}

// NewServer creates the probe server. Metrics are served from gatherer; the
// readiness probe runs every checker.
func NewServer(logger *slog.Logger, cfg *config.ObservabilityConfig, gatherer prometheus.Gatherer, checkers ...Checker) *Server {
	validation.AssertNotNil(logger, "observability logger")
	validation.AssertNotNil(cfg, "observability config")
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	s := &Server{
		logger:   logger,
		cfg:      cfg,
		router:   r,
		gatherer: gatherer,
		checkers: checkers,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get(s.cfg.LivenessPath, s.liveness)
	s.router.Get(s.cfg.ReadinessPath, s.readiness)
	s.router.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the router, for tests and for mounting under another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the configured port and serves in a background goroutine.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("observability: listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.Timeout,
		WriteTimeout: s.cfg.Timeout,
		IdleTimeout:  s.cfg.Timeout * 3,
	}

	go func() {
		s.logger.Info("starting observability server",
			slog.String("addr", ln.Addr().String()),
			slog.String("liveness_path", s.cfg.LivenessPath),
			slog.String("readiness_path", s.cfg.ReadinessPath),
			slog.String("metrics_path", s.cfg.MetricsPath),
		)

		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server failed", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server. It is a no-op if Start was never called.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("stopping observability server")
	return s.server.Shutdown(ctx)
}
