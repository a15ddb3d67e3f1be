// Package api provides the HTTP query surface of the Pagemark host. The
// embedded reader UI drives the library and open reading sessions through
// it; the rendering surface posts its events through it.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	"github.com/pagemarkapp/pagemark-host/internal/http/response"
	"github.com/pagemarkapp/pagemark-host/internal/library"
	"github.com/pagemarkapp/pagemark-host/internal/reader"
	"github.com/pagemarkapp/pagemark-host/internal/search"
	"github.com/pagemarkapp/pagemark-host/internal/store"
	"github.com/pagemarkapp/pagemark-host/internal/validation"
)

// SurfaceHub routes webview stream and payload requests to the surface
// of an open reading session. Implemented by surface.Opener.
type SurfaceHub interface {
	ServeStream(bookID int64, w http.ResponseWriter, r *http.Request) error
	Payload(bookID int64) ([]byte, domain.Format, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    store.Store
	library  *library.Service
	sessions *reader.Service
	index    *search.Index
	hub      SurfaceHub
	validate *validation.Validator
	router   *chi.Mux
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st store.Store, lib *library.Service, sessions *reader.Service, index *search.Index, hub SurfaceHub, logger *slog.Logger) *Server {
	s := &Server{
		store:    st,
		library:  lib,
		sessions: sessions,
		index:    index,
		hub:      hub,
		validate: validation.New(),
		router:   chi.NewRouter(),
		logger:   logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// The UI shell loads from its own dev origin while the host runs on
	// localhost, so the surface is permissive about local origins.
	s.router.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, _ string) bool { return true },
		AllowedMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:  []string{"Accept", "Content-Type"},
		MaxAge:          300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.handleLibrarySearch)

		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Post("/", s.handleImportBook)
			r.Get("/{id}", s.handleGetBook)
			r.Delete("/{id}", s.handleDeleteBook)

			r.Get("/{id}/bookmarks", s.handleListBookmarks)
			r.Get("/{id}/comments", s.handleListComments)
			r.Get("/{id}/highlights", s.handleListHighlights)

			// Reading session lifecycle and controls.
			r.Post("/{id}/open", s.handleOpenBook)
			r.Post("/{id}/close", s.handleCloseBook)
			r.Get("/{id}/session", s.handleGetSession)
			r.Post("/{id}/navigate", s.handleNavigate)
			r.Put("/{id}/settings", s.handleApplySettings)

			// In-document search.
			r.Post("/{id}/search", s.handleSessionSearch)
			r.Post("/{id}/search/next", s.handleNextMatch)
			r.Post("/{id}/search/prev", s.handlePrevMatch)

			// Annotations on the open session.
			r.Post("/{id}/bookmark", s.handleToggleBookmark)
			r.Post("/{id}/comments", s.handleAddComment)
			r.Post("/{id}/highlights", s.handleAddHighlight)
			r.Delete("/{id}/highlights", s.handleRemoveHighlight)
			r.Post("/{id}/selection/copy", s.handleCopySelection)
			r.Post("/{id}/selection/discard", s.handleDiscardSelection)

			// Rendering surface wiring: inbound event ingest, outbound
			// command stream and the document bytes the webview loads.
			r.Post("/{id}/events", s.handleSurfaceEvent)
			r.Get("/{id}/commands", s.handleSurfaceCommands)
			r.Get("/{id}/payload", s.handleSurfacePayload)
		})
	})
}

// handleHealthCheck returns host health status.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"status": "healthy",
	}, s.logger)
}
