package api

import (
	"encoding/json/v2"
	"net/http"
	"strconv"

	"github.com/pagemarkapp/pagemark-host/internal/http/response"
	"github.com/pagemarkapp/pagemark-host/internal/search"
)

// ImportBookRequest represents the request body for importing a document.
type ImportBookRequest struct {
	Path  string `json:"path" validate:"required"`
	Title string `json:"title" validate:"max=512"`
}

// handleListBooks returns every book in the library.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.library.List(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, books, s.logger)
}

// handleGetBook returns a single book by ID.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}

	book, err := s.library.Get(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleImportBook imports a document from a path on the host machine.
func (s *Server) handleImportBook(w http.ResponseWriter, r *http.Request) {
	var req ImportBookRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validate.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	book, err := s.library.ImportFile(r.Context(), req.Path)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, book, s.logger)
}

// handleDeleteBook removes a book. An open reading session is closed
// first so its final progress write does not race the delete.
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if err := s.sessions.CloseBook(ctx, id); err != nil {
		s.logger.Warn("closing session before delete failed", "book_id", id, "error", err)
	}
	if err := s.library.Delete(ctx, id); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleListBookmarks returns a book's bookmarks, newest first.
func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	bookmarks, err := s.store.ListBookmarks(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, bookmarks, s.logger)
}

// handleListComments returns a book's comments.
func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	comments, err := s.store.ListComments(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, comments, s.logger)
}

// handleListHighlights returns a book's highlights.
func (s *Server) handleListHighlights(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	highlights, err := s.store.ListHighlights(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, highlights, s.logger)
}

// handleLibrarySearch searches book titles and filenames.
func (s *Server) handleLibrarySearch(w http.ResponseWriter, r *http.Request) {
	params := search.DefaultParams()
	params.Query = r.URL.Query().Get("q")
	params.Format = r.URL.Query().Get("format")

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			params.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			params.Offset = offset
		}
	}

	result, err := s.index.Search(r.Context(), params)
	if err != nil {
		s.logger.Error("library search failed", "query", params.Query, "error", err)
		response.InternalError(w, "Search failed", s.logger)
		return
	}
	response.Success(w, result, s.logger)
}
