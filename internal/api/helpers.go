package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pagemarkapp/pagemark-host/internal/http/response"
	"github.com/pagemarkapp/pagemark-host/internal/reader"
)

// bookID parses the {id} route parameter. On failure it writes the error
// response and returns false; handlers just return.
func (s *Server) bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid book ID", s.logger)
		return 0, false
	}
	return id, true
}

// session resolves the open reading session for a book, or writes a 404
// when the book has not been opened.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*reader.Session, int64, bool) {
	id, ok := s.bookID(w, r)
	if !ok {
		return nil, 0, false
	}
	sess, ok := s.sessions.Session(id)
	if !ok {
		response.NotFound(w, "No open session for this book", s.logger)
		return nil, 0, false
	}
	return sess, id, true
}
