package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/perfguard/internal/core/domain"
)

// Source supplies reports and accepts simulated errors.
type Source interface {
	Report(ctx context.Context) Report
	Simulate(ctx context.Context, d domain.Domain, level domain.DetectionLevel) error
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	source Source
	server *http.Server
	log    *slog.Logger
}

// NewServer creates a new health server. gatherer may be nil to expose the
// default registry.
func NewServer(source Source, port int, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		source: source,
		log:    log.With("component", "health"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleDetailed)
	r.Post("/simulate", s.handleSimulate)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server. It returns nil after Stop.
func (s *Server) Start() error {
	s.log.Info("Health server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.source.Report(r.Context())

	response := map[string]any{
		"status": report.Status,
		"score":  report.Score,
		"level":  report.Level,
	}
	code := http.StatusOK
	if report.Status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Report(r.Context()))
}

type simulateRequest struct {
	Detector domain.Domain         `json:"detector"`
	Level    domain.DetectionLevel `json:"level"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	req := simulateRequest{
		Detector: domain.Domain(r.URL.Query().Get("detector")),
		Level:    domain.DetectionLevel(r.URL.Query().Get("level")),
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
			return
		}
	}
	if req.Level == "" {
		req.Level = domain.LevelCritical
	}

	if err := s.source.Simulate(r.Context(), req.Detector, req.Level); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, domain.ErrUnknownDomain) {
			code = http.StatusBadRequest
		}
		writeJSON(w, code, map[string]string{"error": err.Error()})
		return
	}
	s.log.Info("Simulated error dispatched", "detector", req.Detector, "level", req.Level)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
