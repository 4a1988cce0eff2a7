// Package server exposes the registered projects' documentation trees over
// HTTP: an index page at the root, a redirect and static mount per slug, and
// the operational endpoints (health, metrics, pipeline status).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"git.home.luguber.info/inful/docserve/internal/config"
	"git.home.luguber.info/inful/docserve/internal/history"
	"git.home.luguber.info/inful/docserve/internal/logfields"
	"git.home.luguber.info/inful/docserve/internal/registry"
	smw "git.home.luguber.info/inful/docserve/internal/server/middleware"
)

// Paths that cannot be shadowed by a project slug.
var reservedPaths = map[string]bool{
	"healthz": true,
	"api":     true,
	"metrics": true,
}

// Server serves the documentation trees of all registered projects.
type Server struct {
	cfg            *config.Config
	registry       *registry.Registry
	store          history.Store
	metricsHandler http.Handler
	httpServer     *http.Server
}

// New creates a Server over the given registry. The metrics handler may be
// nil when metrics are disabled.
func New(cfg *config.Config, reg *registry.Registry, store history.Store, metricsHandler http.Handler) (*Server, error) {
	for _, p := range reg.Projects() {
		if reservedPaths[p.Slug] {
			return nil, fmt.Errorf("project %q: slug %q shadows a reserved route", p.Config.Path, p.Slug)
		}
	}
	if store == nil {
		store = history.NoopStore{}
	}
	return &Server{cfg: cfg, registry: reg, store: store, metricsHandler: metricsHandler}, nil
}

// Handler builds the full route table. The registry is immutable, so routes
// are mounted once and never change for the process lifetime.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	if s.cfg.MetricsEnabled() && s.metricsHandler != nil {
		mux.Handle(s.cfg.Metrics.Path, s.metricsHandler)
	}

	for _, p := range s.registry.Projects() {
		mux.Handle("/"+p.Slug, redirectToSlash(p.Slug))
		mux.Handle("/"+p.Slug+"/", s.docsHandler(p))
	}

	return smw.Chain(slog.Default())(mux)
}

// redirectToSlash sends /{slug} to /{slug}/ so relative links inside the
// generated documentation resolve.
func redirectToSlash(slug string) http.Handler {
	target := "/" + slug + "/"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusFound)
	})
}

// docsHandler serves the project's documentation output directory. The
// directory appears only as a side effect of a successful build; until then
// every request under the mount answers 404. Unknown files inside an
// existing tree also answer 404 rather than redirecting to the project root.
func (s *Server) docsHandler(p *registry.Project) http.Handler {
	prefix := "/" + p.Slug + "/"
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(p.DocsDir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if stat, err := os.Stat(p.DocsDir); err != nil || !stat.IsDir() {
			http.Error(w, "documentation not built yet", http.StatusNotFound)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// Start binds the configured port and serves until Stop. The bind happens
// synchronously so startup fails fast on an occupied port.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", logfields.Error(err))
		}
	}()

	slog.Info("HTTP server started", slog.Int("port", s.cfg.Port), slog.Int("projects", s.registry.Len()))
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}
