// Package webhook serves the HTTP endpoints Radarr and Sonarr call after
// an import, plus health and Prometheus scrape endpoints. Imported files
// are handed to the job queue; the request never waits for a transcode.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/config"
	"github.com/backmassage/mediasweep/internal/metrics"
	"github.com/backmassage/mediasweep/internal/queue"
)

const maxBodyBytes = 1 << 20

// Enqueuer accepts transcode requests. *queue.Queue implements it.
type Enqueuer interface {
	Enqueue(r queue.Request) error
	Len() int
}

// Server is the webhook HTTP server.
type Server struct {
	cfg        config.ServerConfig
	webhook    config.WebhookConfig
	router     *chi.Mux
	httpServer *http.Server
	queue      Enqueuer
	resolver   category.Resolver
	validator  *payloadValidator
	logger     *slog.Logger
	version    string
	startTime  time.Time
}

// NewServer builds the router. Sonarr paths are categorized with resolver,
// falling back to the configured category when it cannot decide.
func NewServer(cfg config.ServerConfig, wh config.WebhookConfig, q Enqueuer, resolver category.Resolver, logger *slog.Logger, version string) *Server {
	s := &Server{
		cfg:       cfg,
		webhook:   wh,
		router:    chi.NewRouter(),
		queue:     q,
		resolver:  resolver,
		validator: newValidator(),
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(loggingMiddleware(logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(metricsMiddleware)

	s.router.Post("/radarr", s.handleRadarr)
	s.router.Post("/sonarr", s.handleSonarr)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and blocks until Shutdown.
// Calling Shutdown first makes Start return immediately.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", slog.String("address", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server", slog.Duration("timeout", s.cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func (s *Server) handleRadarr(w http.ResponseWriter, r *http.Request) {
	var p RadarrPayload
	if !s.decode(w, r, &p) {
		return
	}
	metrics.WebhookEventsTotal.WithLabelValues("radarr", p.EventType).Inc()

	switch p.EventType {
	case EventTest:
		s.logger.Info("radarr test event received")
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	case EventDownload:
		path := MapPath(s.webhook.PathMappings, p.MovieFile.Path)
		s.logger.Info("radarr import",
			slog.Int("movie_file_id", p.MovieFile.ID),
			slog.String("path", path),
			slog.String("relative_path", p.MovieFile.RelativePath))
		s.enqueue(w, queue.Request{Path: path, Category: string(category.Movie), Source: "radarr"})
	default:
		writeJSON(w, http.StatusOK, statusResponse{Status: "ignored"})
	}
}

func (s *Server) handleSonarr(w http.ResponseWriter, r *http.Request) {
	var p SonarrPayload
	if !s.decode(w, r, &p) {
		return
	}
	metrics.WebhookEventsTotal.WithLabelValues("sonarr", p.EventType).Inc()

	switch p.EventType {
	case EventTest:
		s.logger.Info("sonarr test event received")
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	case EventDownload:
		path := MapPath(s.webhook.PathMappings, episodePath(p.Series.Path, p.EpisodeFile.RelativePath))
		cat := s.webhook.SonarrFallback
		if c, err := s.resolver.Resolve(path); err == nil {
			cat = string(c)
		} else {
			s.logger.Debug("category not resolved from path, using fallback",
				slog.String("path", path), slog.String("category", cat), slog.Any("error", err))
		}
		s.logger.Info("sonarr import", slog.String("series", p.Series.Title), slog.String("path", path))
		s.enqueue(w, queue.Request{Path: path, Category: cat, Source: "sonarr"})
	default:
		writeJSON(w, http.StatusOK, statusResponse{Status: "ignored"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	uptime := time.Since(s.startTime)
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "healthy",
		Version:    s.version,
		Uptime:     uptime.Round(time.Second).String(),
		QueueDepth: s.queue.Len(),
	})
}

// decode reads and validates a JSON payload, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := s.validator.validate(dst); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) enqueue(w http.ResponseWriter, req queue.Request) {
	err := s.queue.Enqueue(req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, statusResponse{Status: "queued", Path: req.Path})
	case errors.Is(err, queue.ErrDuplicate):
		writeJSON(w, http.StatusConflict, statusResponse{Status: "duplicate", Path: req.Path})
	default:
		s.logger.Warn("request rejected", slog.String("path", req.Path), slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

type statusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	QueueDepth int    `json:"queue_depth"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
