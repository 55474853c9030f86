// Package api provides the node's HTTP endpoints for health, backend status
// and statistics, and hosts handlers mounted by other components.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/health"
	"github.com/objectfs/storenode/pkg/types"
	"github.com/objectfs/storenode/pkg/utils"
)

// BackendLister reports the configured backends.
type BackendLister interface {
	Backends() []types.BackendStatus
}

// StatSource renders the statistics snapshot of a category.
type StatSource interface {
	Stats(category string) (map[string]json.RawMessage, error)
}

// Server provides the node's HTTP API
type Server struct {
	httpServer    *http.Server
	mux           *http.ServeMux
	healthTracker *health.Tracker
	backends      BackendLister
	stats         StatSource
	config        ServerConfig
	logger        *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	mounted  []string
}

// ServerConfig configures the API server
type ServerConfig struct {
	// Address to bind the server to (e.g., ":8080")
	Address string `yaml:"address" json:"address"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing
	EnableCORS bool `yaml:"enable_cors" json:"enable_cors"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      "localhost:8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		EnableCORS:   false,
	}
}

// NewServer creates a new API server. Any source may be nil; its endpoints
// then answer 503.
func NewServer(config ServerConfig, healthTracker *health.Tracker, backends BackendLister, stats StatSource, logger *slog.Logger) *Server {
	s := &Server{
		mux:           http.NewServeMux(),
		healthTracker: healthTracker,
		backends:      backends,
		stats:         stats,
		config:        config,
		logger:        utils.Component(logger, "api"),
	}

	// Health endpoints
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /health/components", s.handleHealthComponents)
	s.mux.HandleFunc("GET /health/live", s.handleLiveness)
	s.mux.HandleFunc("GET /health/ready", s.handleReadiness)

	// Backend endpoints
	s.mux.HandleFunc("GET /backends", s.handleBackends)
	s.mux.HandleFunc("GET /stat", s.handleStat)

	// Info endpoint
	s.mux.HandleFunc("GET /info", s.handleInfo)

	handler := s.loggingMiddleware(s.mux)
	if config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}

	s.httpServer = &http.Server{
		Addr:              config.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	return s
}

// Mount serves h under pattern. It must be called before Start.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
	s.mu.Lock()
	s.mounted = append(s.mounted, pattern)
	s.mu.Unlock()
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return errors.IO(errors.ErrCodeIOOpen, err, "failed to listen on %s", s.config.Address)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("starting API server", "address", ln.Addr().String())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Health endpoint handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthTracker == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"note":   "Health tracking not configured",
		})
		return
	}

	overallHealth := s.healthTracker.GetOverallHealth()
	components := s.healthTracker.GetAllComponents()

	response := map[string]interface{}{
		"status":     overallHealth.String(),
		"timestamp":  time.Now(),
		"components": len(components),
	}

	statusCode := http.StatusOK
	switch overallHealth {
	case health.StateUnavailable:
		statusCode = http.StatusServiceUnavailable
	case health.StateDegraded, health.StateReadOnly:
		statusCode = http.StatusPartialContent
	}

	s.respondJSON(w, statusCode, response)
}

func (s *Server) handleHealthComponents(w http.ResponseWriter, r *http.Request) {
	if s.healthTracker == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Health tracking not configured")
		return
	}
	s.respondJSON(w, http.StatusOK, s.healthTracker.GetAllComponents())
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"alive":     true,
		"timestamp": time.Now(),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.healthTracker == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"ready":     true,
			"timestamp": time.Now(),
			"note":      "Health tracking not configured",
		})
		return
	}

	overallHealth := s.healthTracker.GetOverallHealth()
	ready := overallHealth != health.StateUnavailable

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	s.respondJSON(w, statusCode, map[string]interface{}{
		"ready":     ready,
		"status":    overallHealth.String(),
		"timestamp": time.Now(),
	})
}

// Backend endpoint handlers

func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	if s.backends == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Backend listing not configured")
		return
	}

	backends := s.backends.Backends()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"backends":  backends,
		"count":     len(backends),
		"timestamp": time.Now(),
	})
}

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Statistics not configured")
		return
	}

	category := r.URL.Query().Get("category")
	if category == "" {
		category = "all"
	}

	snapshot, err := s.stats.Stats(category)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"category":  category,
		"providers": snapshot,
		"timestamp": time.Now(),
	})
}

// Info endpoint

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	endpoints := []string{
		"/health",
		"/health/components",
		"/health/live",
		"/health/ready",
		"/backends",
		"/stat?category={name}",
		"/info",
	}
	s.mu.Lock()
	endpoints = append(endpoints, s.mounted...)
	s.mu.Unlock()
	sort.Strings(endpoints)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "storenode API",
		"timestamp": time.Now(),
		"endpoints": endpoints,
	})
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Helper methods

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, map[string]interface{}{
		"error":     message,
		"timestamp": time.Now(),
	})
}
