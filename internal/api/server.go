// Package api exposes the minimal HTTP surface the orchestrator runs
// alongside its batch commands when invoked as a daemon (spec.md §6's
// "serve" mode): a liveness check, the Prometheus scrape endpoint, and a
// status summary of how many spots sit in each processing category.
package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/spotlang/internal/observability"
	"github.com/patrickwarner/spotlang/internal/orchestrator"
)

// Server groups the dependencies the HTTP handlers need.
type Server struct {
	Logger       *zap.Logger
	Orchestrator *orchestrator.Orchestrator
	Metrics      observability.MetricsRegistry

	mu      sync.RWMutex
	healthy bool
}

// NewServer constructs a Server, starting healthy.
func NewServer(logger *zap.Logger, o *orchestrator.Orchestrator, metrics observability.MetricsRegistry) *Server {
	return &Server{Logger: logger, Orchestrator: o, Metrics: metrics, healthy: true}
}

// SetHealthy flips the liveness flag /healthz reports, so a failed refdata
// reload can take the instance out of rotation without killing the process.
func (s *Server) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

func (s *Server) isHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

// Router builds the mux.Router exposing /healthz, /metrics, and /status.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.HealthHandler).Methods("GET")
	r.HandleFunc("/status", s.StatusHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}
