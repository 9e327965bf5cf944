package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moolen/groundwork/internal/lifecycle"
	"github.com/moolen/groundwork/internal/logging"
	"github.com/moolen/groundwork/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Group is the lifecycle group the server registers in.
const Group = "server"

// PlanSource reports the current lifecycle ordering.
type PlanSource interface {
	Plan() lifecycle.Plan
}

// Config holds the server's collaborators.
type Config struct {
	// Port to listen on; 0 picks a free port
	Port int

	// PipelineOrder is the phase order used by the first build
	PipelineOrder []string

	Assembler *pipeline.Assembler

	// Lifecycle backs /api/lifecycle; optional
	Lifecycle PlanSource

	// Gatherer backs /metrics; defaults to the global registry
	Gatherer prometheus.Gatherer

	// TracerProvider instruments incoming requests; defaults to the global provider
	TracerProvider trace.TracerProvider
}

// snapshot is one assembled pipeline mounted around the router.
type snapshot struct {
	pipeline *pipeline.Pipeline
	order    []string
	handler  http.Handler
	builtAt  time.Time
}

// Server serves the built-in routes behind the assembled middleware pipeline.
// It is a lifecycle component: PreStart assembles, Start listens, PostStart
// marks ready, PreStop marks not ready and Stop shuts down.
type Server struct {
	port      int
	handler   http.Handler
	logger    *logging.Logger
	assembler *pipeline.Assembler
	plans     PlanSource
	gatherer  prometheus.Gatherer
	router    *http.ServeMux

	current atomic.Pointer[snapshot]
	ready   atomic.Bool

	// runMu guards the per-run server and listener
	runMu    sync.Mutex
	server   *http.Server
	listener net.Listener

	// rebuildMu serializes rebuilds so the last requested order wins
	rebuildMu sync.Mutex
	order     []string
}

// New creates a server. Nothing is assembled or bound until the lifecycle
// drives it.
func New(cfg Config) *Server {
	s := &Server{
		port:      cfg.Port,
		logger:    logging.GetLogger("apiserver"),
		assembler: cfg.Assembler,
		plans:     cfg.Lifecycle,
		gatherer:  cfg.Gatherer,
		router:    http.NewServeMux(),
		order:     append([]string(nil), cfg.PipelineOrder...),
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	s.registerHandlers()
	s.handler = otelhttp.NewHandler(http.HandlerFunc(s.dispatch), "groundwork.http",
		otelhttp.WithTracerProvider(tp),
	)
	return s
}

// newHTTPServer builds a fresh http.Server; a server that was shut down
// cannot serve again.
func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// dispatch routes through the current pipeline, or straight to the router
// before the first build.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	if snap := s.current.Load(); snap != nil {
		snap.handler.ServeHTTP(w, r)
		return
	}
	s.router.ServeHTTP(w, r)
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Rebuild assembles a new pipeline with the given phase order and swaps it in.
// In-flight requests finish on the pipeline they started with. On error the
// previous pipeline stays in place.
func (s *Server) Rebuild(ctx context.Context, order []string) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	p, err := s.assembler.Build(ctx, order)
	if err != nil {
		return fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	s.order = append([]string(nil), order...)
	s.current.Store(&snapshot{
		pipeline: p,
		order:    s.order,
		handler:  p.Then(s.router),
		builtAt:  time.Now(),
	})
	s.logger.Info("Pipeline assembled: %d phases, %d members", len(p.Phases()), p.Len())
	return nil
}

// PreStart assembles the pipeline from the configured order.
func (s *Server) PreStart(ctx context.Context) error {
	s.rebuildMu.Lock()
	order := s.order
	s.rebuildMu.Unlock()
	return s.Rebuild(ctx, order)
}

// Start binds the port and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("API server already listening on %s", s.listener.Addr())
	}

	srv := s.newHTTPServer()
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}
	s.server = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error: %v", err)
		}
	}()

	s.logger.Info("API server listening on %s", ln.Addr())
	return nil
}

// PostStart marks the server ready.
func (s *Server) PostStart(context.Context) error {
	s.ready.Store(true)
	return nil
}

// PreStop marks the server not ready so load balancers drain it.
func (s *Server) PreStop(context.Context) error {
	s.ready.Store(false)
	return nil
}

// Stop gracefully shuts the HTTP server down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.runMu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.runMu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("Stopping API server...")

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error: %v", err)
		return err
	}

	s.logger.Info("API server stopped")
	return nil
}

// Addr returns the bound address, or nil while not listening.
func (s *Server) Addr() net.Addr {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// IsReady reports whether PostStart has run and PreStop has not.
func (s *Server) IsReady() bool {
	return s.ready.Load()
}
