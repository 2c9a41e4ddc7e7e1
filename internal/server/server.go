// Package server is the REST API: bearer-authenticated CRUD under /api/v1,
// the public playlist output and the ops endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/voyagen/m3ueditor/api"
	"github.com/voyagen/m3ueditor/internal/auth"
	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/logging"
	"github.com/voyagen/m3ueditor/internal/metrics"
	"github.com/voyagen/m3ueditor/internal/store"
)

// Dispatcher enqueues background jobs; worker.Queue implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job cache.SyncJob) error
}

// Folders removes the raw document folder of a deleted playlist or EPG; *storage.Dir implements it.
type Folders interface {
	Remove(kind, uuid string) error
}

// Options holds the server dependencies. Metrics and Folders may be nil.
type Options struct {
	Store   store.Store
	Tokens  *auth.Tokens
	Queue   Dispatcher
	Folders Folders
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger
	Port    string
	// RateLimit is the number of /api/v1 requests allowed per minute per user or IP. Default 60.
	RateLimit int
}

// Server holds dependencies for the HTTP API.
type Server struct {
	store    store.Store
	tokens   *auth.Tokens
	queue    Dispatcher
	folders  Folders
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	port     string
	validate *validator.Validate
	limiter  *limiter
	router   chi.Router
}

// New creates a Server and registers routes.
func New(opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}
	if opts.Port == "" {
		opts.Port = "8080"
	}
	s := &Server{
		store:    opts.Store,
		tokens:   opts.Tokens,
		queue:    opts.Queue,
		folders:  opts.Folders,
		metrics:  opts.Metrics,
		log:      logging.Component(opts.Log, "server"),
		port:     opts.Port,
		validate: newValidator(),
		limiter:  newLimiter(opts.RateLimit, time.Minute),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(withCORS)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/docs", handleSwaggerUI)
	r.Get("/api/docs/openapi.yaml", handleOpenAPISpec)
	r.Get("/{uuid}/playlist.m3u", s.handlePlaylistOutput)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.rateLimit).Post("/auth/token", s.handleIssueToken)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Use(s.rateLimit)

			r.Get("/user/whoami", s.handleWhoami)

			r.Post("/sync/playlist/{id}", s.handleSyncPlaylist)
			r.Post("/sync/playlist/{id}/{force}", s.handleSyncPlaylist)
			r.Post("/sync/epg/{id}", s.handleSyncEpg)
			r.Post("/sync/epg/{id}/{force}", s.handleSyncEpg)

			r.Route("/playlists", func(r chi.Router) {
				r.Get("/", s.handleListPlaylists)
				r.Post("/", s.handleCreatePlaylist)
				r.Put("/{id}", s.handleUpdatePlaylist)
				r.Delete("/{id}", s.handleDeletePlaylist)
			})

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", s.handleListGroups)
				r.Post("/", s.handleCreateGroup)
				r.Put("/{id}", s.handleUpdateGroup)
				r.Delete("/{id}", s.handleDeleteGroup)
			})

			r.Route("/channels", func(r chi.Router) {
				r.Get("/", s.handleListChannels)
				r.Post("/", s.handleCreateChannel)
				r.Put("/{id}", s.handleUpdateChannel)
				r.Delete("/{id}", s.handleDeleteChannel)
				r.Post("/bulk/enable", s.handleBulkEnable(true))
				r.Post("/bulk/disable", s.handleBulkEnable(false))
				r.Post("/bulk/move", s.handleBulkMove)
				r.Post("/bulk/logo-type", s.handleBulkLogoType)
				r.Post("/bulk/map-epg", s.handleBulkMapEpg)
			})

			r.Route("/custom-playlists", func(r chi.Router) {
				r.Get("/", s.handleListCustomPlaylists)
				r.Post("/", s.handleCreateCustomPlaylist)
				r.Put("/{id}", s.handleUpdateCustomPlaylist)
				r.Delete("/{id}", s.handleDeleteCustomPlaylist)
				r.Post("/{id}/channels", s.handleAttachCustomPlaylistChannels)
			})

			r.Route("/merged-playlists", func(r chi.Router) {
				r.Get("/", s.handleListMergedPlaylists)
				r.Post("/", s.handleCreateMergedPlaylist)
				r.Put("/{id}", s.handleUpdateMergedPlaylist)
				r.Delete("/{id}", s.handleDeleteMergedPlaylist)
			})

			r.Route("/epgs", func(r chi.Router) {
				r.Get("/", s.handleListEpgs)
				r.Post("/", s.handleCreateEpg)
				r.Put("/{id}", s.handleUpdateEpg)
				r.Delete("/{id}", s.handleDeleteEpg)
			})
		})
	})
	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Warn("server shutdown")
		}
	}()

	s.log.WithField("addr", addr).Info("listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]string{"status": "unavailable", "database": err.Error()}
		}
	}
	writeJSON(w, status, body)
}

// --- docs handlers ---

func handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.OpenAPI)
}

func handleSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, swaggerUIHTML)
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>m3ueditor API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box;overflow-y:scroll}*,*:before,*:after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/docs/openapi.yaml",
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: "BaseLayout",
    });
  </script>
</body>
</html>`
