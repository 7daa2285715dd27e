package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/observability"
)

// maxRequestBytes bounds a prediction request body. A year of hourly usage
// and temperature readings is well under 2 MiB.
const maxRequestBytes = 8 << 20

// Analyzer answers one decoded fit request.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.FitRequest) domain.FitResult
}

// Server exposes health, readiness, metrics and synchronous prediction
// endpoints.
type Server struct {
	httpServer *http.Server
	analyzer   Analyzer
	defaults   domain.RequestDefaults
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// POST /v1/predictions routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, analyzer Analyzer, defaults domain.RequestDefaults, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		analyzer: analyzer,
		defaults: defaults,
		metrics:  metrics,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/predictions", s.handlePrediction)

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

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.metrics.HTTPPredictions.WithLabelValues("rejected").Inc()
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	req, err := domain.ParseFitRequest(raw, s.defaults)
	var result domain.FitResult
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		result = domain.FailedResult(req, domain.FailureInvalidRequest, err)
	case err != nil:
		s.metrics.HTTPPredictions.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	default:
		result = s.analyzer.Analyze(r.Context(), req)
	}

	s.metrics.HTTPPredictions.WithLabelValues(result.Status).Inc()
	writeJSON(w, statusFor(result), result)
}

// statusFor maps a result to its HTTP status.
func statusFor(result domain.FitResult) int {
	if result.Succeeded() {
		return http.StatusOK
	}
	switch result.FailureReason {
	case domain.FailureInvalidRequest, domain.FailureInsufficientData, domain.FailureAlignment:
		return http.StatusUnprocessableEntity
	case domain.FailureWeatherUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
