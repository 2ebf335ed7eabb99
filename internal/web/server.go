// Package web serves dialect detection and file previews over HTTP.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/filerift/internal/config"
	"github.com/JonMunkholm/filerift/internal/metrics"
	mw "github.com/JonMunkholm/filerift/internal/web/middleware"
	"github.com/JonMunkholm/filerift/internal/web/templates"
)

// Server is the HTTP server for filerift.
type Server struct {
	cfg      config.ServerConfig
	reader   config.ReaderConfig
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	uploads  *uploadLimiter
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server. m records reads and g is exposed on /metrics.
func NewServer(cfg *config.Config, m *metrics.Metrics, g prometheus.Gatherer) *Server {
	s := &Server{
		cfg:      cfg.Server,
		reader:   cfg.Reader,
		metrics:  m,
		gatherer: g,
		uploads:  newUploadLimiter(cfg.Server.MaxConcurrentUploads, cfg.Server.UploadWait),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
	s.router.Use(securityHeaders)
	s.router.Use(mw.RateLimit(s.cfg.RateLimit, time.Minute))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.uploads.middleware)
		r.Post("/detect", s.handleDetect)
		r.Post("/preview", s.handlePreview)
	})
}

// Start listens on ServerConfig.Addr until Shutdown.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	err := s.server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for active uploads.
func (s *Server) Shutdown(ctx context.Context) error {
	if n := s.uploads.Active(); n > 0 {
		slog.Info("waiting for uploads to complete", "active", n)
	}
	err := s.server.Shutdown(ctx)
	if drainErr := s.uploads.drain(ctx); drainErr != nil {
		slog.Warn("uploads did not complete in time", "error", drainErr)
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index().Render(r.Context(), w); err != nil {
		slog.Error("render index", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]string{"status": "ok"})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
