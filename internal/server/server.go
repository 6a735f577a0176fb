// Package server is the HTTP front door for the query engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
	"github.com/Aman-CERP/postsearch/internal/search"
	"github.com/Aman-CERP/postsearch/internal/telemetry"
)

// Config holds listener and timeout settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server serves /search, health checks and metrics.
type Server struct {
	cfg      Config
	engine   *search.Engine
	provider search.IndexProvider
	stats    *telemetry.QueryStats
	logger   *slog.Logger
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithConfig overrides listener settings. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(s *Server) {
		def := DefaultConfig()
		if cfg.Addr == "" {
			cfg.Addr = def.Addr
		}
		if cfg.ReadTimeout <= 0 {
			cfg.ReadTimeout = def.ReadTimeout
		}
		if cfg.WriteTimeout <= 0 {
			cfg.WriteTimeout = def.WriteTimeout
		}
		if cfg.ShutdownTimeout <= 0 {
			cfg.ShutdownTimeout = def.ShutdownTimeout
		}
		s.cfg = cfg
	}
}

// WithQueryStats exposes a query stats snapshot at /stats.
func WithQueryStats(stats *telemetry.QueryStats) Option {
	return func(s *Server) { s.stats = stats }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a server around engine. provider backs the readiness check and
// should be the same provider the engine queries.
func New(engine *search.Engine, provider search.IndexProvider, opts ...Option) *Server {
	s := &Server{
		cfg:      DefaultConfig(),
		engine:   engine,
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "server"))
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.recoverer)
	r.Use(s.requestLog)
	r.Use(telemetry.Middleware())

	r.Get("/search", s.handleSearch)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if s.stats != nil {
		r.Get("/stats", s.handleStats)
	}
	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return perrors.InternalError("listen on "+s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests within the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http_listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http_shutdown_failed", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("http_stopped")
	return nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once an index with at least one commit can be
// opened.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ix, release, err := s.provider.Acquire()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	gen := ix.Generation()
	release()

	if gen == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "empty",
			"code":   perrors.ErrCodeIndexNotFound,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ready",
		"generation": gen,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := perrors.HTTPStatus(err)
	body := errorBody{Error: "internal error", Code: perrors.ErrCodeInternal}
	if pe, ok := perrors.As(err); ok {
		body.Code = pe.Code
		if status != http.StatusInternalServerError {
			body.Error = pe.Message
		}
	}

	attrs := []any{
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Int("status", status),
	}
	for _, a := range perrors.FormatForLog(err) {
		attrs = append(attrs, a)
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request_failed", attrs...)
	} else {
		s.logger.Debug("request_rejected", attrs...)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
