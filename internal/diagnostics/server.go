// Package diagnostics exposes the read-only HTTP surface the UI
// collaborator polls at up to 10 Hz: per-component ServiceStats, the
// Orchestrator's startup progress model, and an aggregate health check.
// It never mutates anything in the pipeline it reports on.
package diagnostics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/kestrel-labs/facebridge/internal/domain"
	"github.com/kestrel-labs/facebridge/internal/orchestrator"
	"github.com/kestrel-labs/facebridge/pkg/logger"
)

// StatsProvider returns a component's current ServiceStats snapshot. It
// must be cheap and non-blocking, matching the snapshot discipline every
// component's own Stats() method already follows.
type StatsProvider func() domain.ServiceStats

// ProgressProvider returns the Orchestrator's startup progress snapshot.
type ProgressProvider func() []orchestrator.Step

// Server serves /stats/{component}, /progress, and /healthz over HTTP,
// grounded on the teacher's gorilla/mux + swaggo router shape but scoped
// to this system's three read-only collaborator endpoints instead of a
// full REST API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	mu       sync.RWMutex
	stats    map[string]StatsProvider
	progress ProgressProvider
}

// NewServer constructs a diagnostics Server bound to addr (e.g. ":8090").
func NewServer(addr string, baseLogger *slog.Logger, progress ProgressProvider) *Server {
	s := &Server{
		logger:   baseLogger.With("component", "diagnostics"),
		stats:    make(map[string]StatsProvider),
		progress: progress,
	}

	router := mux.NewRouter()
	router.Use(logger.LoggingMiddleware(s.logger))
	router.HandleFunc("/stats/{component}", s.statsHandler).Methods(http.MethodGet)
	router.HandleFunc("/progress", s.progressHandler).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.healthzHandler).Methods(http.MethodGet)
	router.PathPrefix("/docs").Handler(httpSwagger.WrapHandler)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// RegisterComponent makes a component's stats available at
// GET /stats/{name}.
func (s *Server) RegisterComponent(name string, provider StatsProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[name] = provider
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// within the given timeout.
func (s *Server) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("diagnostics server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// statsHandler godoc
//
//	@Summary		Component stats
//	@Description	Returns the named component's current ServiceStats snapshot
//	@Tags			diagnostics
//	@Produce		json
//	@Param			component	path	string	true	"Component name"
//	@Success		200	{object}	domain.ServiceStats
//	@Failure		404	{string}	string	"unknown component"
//	@Router			/stats/{component} [get]
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["component"]

	s.mu.RLock()
	provider, ok := s.stats[name]
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "unknown component: "+name, http.StatusNotFound)
		return
	}

	s.writeJSON(w, provider())
}

// progressHandler godoc
//
//	@Summary		Startup progress
//	@Description	Returns the Orchestrator's init-sequence progress model
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{array}	orchestrator.Step
//	@Router			/progress [get]
func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	if s.progress == nil {
		s.writeJSON(w, []orchestrator.Step{})
		return
	}
	s.writeJSON(w, s.progress())
}

// healthzHandler godoc
//
//	@Summary		Aggregate health
//	@Description	Returns 200 iff every registered component reports is_healthy=true
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		503	{object}	map[string]interface{}
//	@Router			/healthz [get]
func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	providers := make(map[string]StatsProvider, len(s.stats))
	for name, p := range s.stats {
		providers[name] = p
	}
	s.mu.RUnlock()

	components := make(map[string]bool, len(providers))
	allHealthy := true
	for name, provider := range providers {
		stats := provider()
		components[name] = stats.IsHealthy
		allHealthy = allHealthy && stats.IsHealthy
	}

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"healthy":    allHealthy,
		"components": components,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode diagnostics response", "error", err)
	}
}
