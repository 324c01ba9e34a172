// Package api exposes the operational HTTP endpoints: health, metrics,
// and the report of the most recent acquisition run.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/fedleads/harvester/internal/pipeline"
	"github.com/fedleads/harvester/internal/telemetry"
)

// Server serves the ops endpoints on a dedicated port.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger

	mu         sync.RWMutex
	lastReport *pipeline.Report
}

// NewServer wires the router and returns an unstarted server.
func NewServer(port int, logger *zap.Logger) *Server {
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", telemetry.Handler().ServeHTTP)
	r.Get("/runs/latest", s.handleLatestRun)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetReport records the report returned by a finished run so that
// /runs/latest can serve it.
func (s *Server) SetReport(report *pipeline.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = report
}

// Start begins serving in the calling goroutine. It returns nil when the
// server was shut down cleanly.
func (s *Server) Start() error {
	s.logger.Info("ops server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ops server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	report := s.lastReport
	s.mu.RUnlock()

	if report == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
