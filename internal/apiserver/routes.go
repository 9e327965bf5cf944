package apiserver

import (
	"net/http"
	"time"

	"github.com/moolen/groundwork/internal/pipeline"
	"github.com/moolen/groundwork/internal/response"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerHandlers registers all HTTP handlers
func (s *Server) registerHandlers() {
	s.router.HandleFunc("/health", s.withMethod(http.MethodGet, s.handleHealth))
	s.router.HandleFunc("/ready", s.withMethod(http.MethodGet, s.handleReady))
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.router.HandleFunc("/api/lifecycle", s.withMethod(http.MethodGet, s.handleLifecycle))
	s.router.HandleFunc("/api/pipeline", s.withMethod(http.MethodGet, s.handlePipeline))
	s.router.HandleFunc("/", s.handleNotFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = response.WriteSuccess(w, map[string]interface{}{
		"status": "healthy",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ready := s.IsReady()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	_ = response.WriteStatus(w, status, map[string]interface{}{
		"ready": ready,
	})
}

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	if s.plans == nil {
		response.WriteError(w, http.StatusNotFound, "NOT_FOUND", "lifecycle introspection not configured")
		return
	}
	_ = response.WriteSuccess(w, s.plans.Plan())
}

type pipelineResponse struct {
	Order   []string             `json:"order"`
	Phases  []pipeline.PhaseInfo `json:"phases"`
	BuiltAt *time.Time           `json:"builtAt,omitempty"`
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	snap := s.current.Load()
	if snap == nil {
		_ = response.WriteSuccess(w, pipelineResponse{Phases: []pipeline.PhaseInfo{}})
		return
	}
	builtAt := snap.builtAt.UTC()
	_ = response.WriteSuccess(w, pipelineResponse{
		Order:   snap.order,
		Phases:  snap.pipeline.Phases(),
		BuiltAt: &builtAt,
	})
}
