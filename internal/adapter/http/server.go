// Package http exposes the service's HTTP surface: health and metrics
// endpoints plus the strike computation API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// StrikeComputer runs a memoized strike computation over the point store.
type StrikeComputer interface {
	ComputeStrikes(ctx context.Context, preds []domain.Predicate, params domain.Parameters, dataIdentity string) ([]domain.Strike, error)
	ClearCache(ctx context.Context) error
}

// Server exposes health, readiness, metrics, and strike API endpoints.
type Server struct {
	httpServer *http.Server
	engine     StrikeComputer
	logger     *slog.Logger
}

// NewServer creates an HTTP server with health, metrics, and strike routes.
func NewServer(addr string, ready ReadinessChecker, engine StrikeComputer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Minute, // strike computations can run long
			IdleTimeout:  60 * time.Second,
		},
		engine: engine,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/strikes/compute", s.handleCompute)
	mux.HandleFunc("DELETE /v1/cache", s.handleClearCache)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// computeRequest is the body of POST /v1/strikes/compute. Parameters may be
// omitted entirely to use the defaults; predicates default to none. An empty
// data identity means the current store contents identify the dataset.
type computeRequest struct {
	Predicates   []domain.Predicate `json:"predicates"`
	Parameters   *domain.Parameters `json:"parameters"`
	DataIdentity string             `json:"data_identity"`
}

type computeResponse struct {
	Strikes []domain.Strike `json:"strikes"`
	Count   int             `json:"count"`
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	params := domain.DefaultParameters()
	if req.Parameters != nil {
		params = *req.Parameters
	}

	strikes, err := s.engine.ComputeStrikes(r.Context(), req.Predicates, params, req.DataIdentity)
	if err != nil {
		var paramErr *domain.InvalidParameterError
		var predErr *domain.InvalidPredicateError
		if errors.As(err, &paramErr) || errors.As(err, &predErr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Error("strike computation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "strike computation failed"})
		return
	}

	writeJSON(w, http.StatusOK, computeResponse{Strikes: strikes, Count: len(strikes)})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearCache(r.Context()); err != nil {
		s.logger.Error("cache clear failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache clear failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cache cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
