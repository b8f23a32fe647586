// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ory/herodot"
	"github.com/poiesic/adala/core"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	apiName    = "Assistant Juridique Marocain API"
	apiVersion = "1.0.0"

	defaultHistoryLimit = 50
	maxBodyBytes        = 1 << 20
)

var errNotInitialized = herodot.DefaultError{
	CodeField:   http.StatusServiceUnavailable,
	StatusField: http.StatusText(http.StatusServiceUnavailable),
	ErrorField:  "The assistant is not initialized",
}

// Service is the part of the assistant served over HTTP.
// *adala.Assistant satisfies it.
type Service interface {
	Initialized() bool
	Ask(ctx context.Context, q core.Question) (*core.Answer, error)
	Reload(ctx context.Context) core.ReloadResult
	History(limit int) []core.HistoryEntry
	ClearHistory(ctx context.Context) error
	Status(ctx context.Context) core.Status
}

// Server routes HTTP requests to a Service.
type Server struct {
	mux     *http.ServeMux
	service Service
	writer  *herodot.JSONWriter
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer creates a Server for service.
func NewServer(service Service, opts ...Option) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		service: service,
		writer:  herodot.NewJSONWriter(nil),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.root)
	s.mux.HandleFunc("GET /health", s.healthCheck)
	s.mux.HandleFunc("POST /ask", s.ask)
	s.mux.HandleFunc("POST /reload-data", s.reloadData)
	s.mux.HandleFunc("GET /history", s.history)
	s.mux.HandleFunc("DELETE /history", s.clearHistory)
	s.mux.HandleFunc("GET /status", s.status)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the server's HTTP handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.mux)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	s.writer.Write(w, r, map[string]string{
		"message": apiName,
		"version": apiVersion,
		"status":  "running",
	})
}

type healthResponse struct {
	Status    string       `json:"status"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Services  *core.Status `json:"services,omitempty"`
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if !s.service.Initialized() {
		s.writer.WriteCode(w, r, http.StatusServiceUnavailable, &healthResponse{
			Status:    "unhealthy",
			Message:   "Service non initialisé",
			Timestamp: s.now(),
		})
		return
	}

	status := s.service.Status(r.Context())
	s.writer.Write(w, r, &healthResponse{
		Status:    "healthy",
		Timestamp: s.now(),
		Services:  &status,
	})
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var q core.Question
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&q); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}
	if strings.TrimSpace(q.Text) == "" {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("La question ne peut pas être vide"))
		return
	}

	s.logger.Info("question received", "question_len", len(q.Text), "context_limit", q.ContextLimit)
	answer, err := s.service.Ask(r.Context(), q)
	switch {
	case errors.Is(err, core.ErrNotInitialized):
		s.writer.WriteError(w, r, errNotInitialized.WithReason("Service non initialisé"))
		return
	case errors.Is(err, core.ErrInvalidQuestion):
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason(err.Error()))
		return
	case err != nil:
		s.logger.Error("error answering question", "err", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Erreur lors du traitement de la question"))
		return
	}
	s.writer.Write(w, r, answer)
}

func (s *Server) reloadData(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("reload requested")
	result := s.service.Reload(r.Context())
	s.writer.Write(w, r, &result)
}

type historyResponse struct {
	History   []core.HistoryEntry `json:"history"`
	Count     int                 `json:"count"`
	Timestamp time.Time           `json:"timestamp"`
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries := s.service.History(limit)
	s.writer.Write(w, r, &historyResponse{
		History:   entries,
		Count:     len(entries),
		Timestamp: s.now(),
	})
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearHistory(r.Context()); err != nil {
		s.logger.Error("error clearing history", "err", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Erreur lors du vidage de l'historique"))
		return
	}
	s.writer.Write(w, r, map[string]string{"message": "Historique vidé avec succès"})
}

type statusResponse struct {
	Status    core.Status `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.writer.Write(w, r, &statusResponse{
		Status:    s.service.Status(r.Context()),
		Timestamp: s.now(),
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "uri", r.RequestURI, "remote", r.RemoteAddr, "duration", time.Since(start))
	})
}
