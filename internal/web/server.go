// Package web serves the prompt store over HTTP.
package web

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/config"
	"github.com/hpungsan/quill/internal/ops"
)

// SecretHeader carries the admin credential on every API request.
const SecretHeader = "X-Admin-Secret"

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 8 << 20

// ErrNoSecret is returned by NewServer when no admin secret is configured.
var ErrNoSecret = stderrors.New("admin secret is not configured; set QUILL_ADMIN_SECRET or admin_secret in config.json")

// Server routes HTTP requests to the prompt repository.
type Server struct {
	repo     *ops.Repository
	logger   *zap.Logger
	router   chi.Router
	renderer *Renderer
	secret   atomic.Value // string
	addr     string
}

// NewServer builds the router. It refuses to build without an admin secret.
func NewServer(repo *ops.Repository, cfg *config.Config, logger *zap.Logger, version string) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if strings.TrimSpace(cfg.AdminSecret) == "" {
		return nil, ErrNoSecret
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		repo:     repo,
		logger:   logger,
		router:   chi.NewRouter(),
		renderer: NewRenderer(version),
		addr:     fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
	}
	s.secret.Store(cfg.AdminSecret)
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(securityHeaders)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.adminGate)

		r.Get("/tag-groups", s.handleTagGroups)
		r.Get("/history/{snapshot}", s.handleSnapshot)

		r.Get("/prompts", s.handleList)
		r.Route("/prompts/{id}", func(r chi.Router) {
			r.Get("/", s.handleRead)
			r.Post("/", s.handleSave)
			r.Delete("/", s.handleDelete)
			r.Get("/metadata", s.handleMetadata)
			r.Post("/tags", s.handleTags)
			r.Get("/history", s.handleHistory)
			r.Post("/restore", s.handleRestore)
			r.Get("/diff", s.handleDiff)
			r.Get("/preview", s.handlePreview)
			r.Post("/render", s.handleRender)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		renderErrorJSON(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		renderErrorJSON(w, http.StatusMethodNotAllowed, "INVALID_REQUEST", "method not allowed", nil)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetSecret replaces the admin secret. An empty secret is ignored so a
// bad config reload cannot open the API.
func (s *Server) SetSecret(secret string) {
	if strings.TrimSpace(secret) == "" {
		s.logger.Warn("ignoring empty admin secret on reload")
		return
	}
	s.secret.Store(secret)
}

// ApplyConfig applies the hot-reloadable settings of cfg.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.SetSecret(cfg.AdminSecret)
	s.repo.SetMinIndexEntries(cfg.MinIndexEntries)
}

// HTTPServer returns an http.Server for the configured address.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *zap.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("quill API listening", zap.String("addr", "http://"+srv.Addr))

	if strings.HasPrefix(srv.Addr, "0.0.0.0") || strings.HasPrefix(srv.Addr, "[::]") || strings.HasPrefix(srv.Addr, ":") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
