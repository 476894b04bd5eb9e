package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/cwlviz/internal/config"
	"github.com/me/cwlviz/internal/render"
	"github.com/me/cwlviz/internal/store"
	"github.com/me/cwlviz/internal/ui"
)

// maxBodyBytes caps the size of submitted CWL documents.
const maxBodyBytes = 8 << 20

// Server is the cwlviz REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.Config
	startTime time.Time
	renderer  *render.Service
	store     store.GraphStore
	ui        *ui.UI
}

// New creates a new Server with all routes registered.
// st may be nil; the /graphs endpoints then answer with an error, the web UI
// is not mounted and only stateless rendering is available.
func New(cfg config.Config, st store.GraphStore, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		renderer:  render.New(logger),
		store:     st,
	}
	if st != nil {
		s.ui = ui.New(st, s.renderer, cfg.Render, logger)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		// Stateless rendering
		r.Post("/render", s.handleRender)

		// Cached graphs
		r.Route("/graphs", func(r chi.Router) {
			r.Get("/", s.handleListGraphs)
			r.Post("/", s.handleCreateGraph)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetGraph)
				r.Get("/dot", s.handleGetGraphDOT)
				r.Delete("/", s.handleDeleteGraph)
			})
		})
	})

	if s.ui != nil {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/ui/", http.StatusFound)
		})
		r.Route("/ui", s.ui.RegisterRoutes)
	}
}
