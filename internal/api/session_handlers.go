package api

import (
	"encoding/json/v2"
	"io"
	"net/http"
	"strconv"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	"github.com/pagemarkapp/pagemark-host/internal/http/response"
	"github.com/pagemarkapp/pagemark-host/internal/reader"
)

// NavigateRequest represents the request body for a navigation jump.
type NavigateRequest struct {
	Target string `json:"target" validate:"required"`
}

// SettingsRequest represents the request body for reader settings.
type SettingsRequest struct {
	Theme       string  `json:"theme" validate:"required,oneof=white sepia dark"`
	FontSizePct int     `json:"font_size_pct" validate:"required,gte=50,lte=300"`
	LineHeight  float64 `json:"line_height" validate:"required,gte=1,lte=3"`
}

// SessionSearchRequest represents the request body for in-document search.
type SessionSearchRequest struct {
	Query string `json:"query" validate:"required,max=1024"`
}

// SessionState is the session snapshot returned to the UI.
type SessionState struct {
	Book       *domain.Book          `json:"book"`
	Position   int64                 `json:"position"`
	Total      int64                 `json:"total"`
	Percent    float64               `json:"percent"`
	Bookmarked bool                  `json:"bookmarked"`
	Chapters   []domain.Chapter      `json:"chapters"`
	Selection  *domain.Selection     `json:"selection,omitempty"`
	Results    []domain.SearchResult `json:"results"`
	Settings   domain.ReaderSettings `json:"settings"`
	Fault      string                `json:"fault,omitempty"`
}

func sessionState(sess *reader.Session) SessionState {
	snapshot := sess.Snapshot()
	return SessionState{
		Book:       sess.Book(),
		Position:   snapshot.CurrentPosition,
		Total:      snapshot.TotalPositions,
		Percent:    snapshot.ProgressPercent(),
		Bookmarked: sess.Bookmarked(),
		Chapters:   sess.Chapters(),
		Selection:  sess.Selection(),
		Results:    sess.Results(),
		Settings:   sess.Settings(),
		Fault:      sess.Fault(),
	}
}

// handleOpenBook opens a reading session. Opening an already-open book
// returns the existing session.
func (s *Server) handleOpenBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}

	sess, err := s.sessions.OpenBook(r.Context(), id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, sessionState(sess), s.logger)
}

// handleCloseBook closes the reading session, flushing pending progress.
func (s *Server) handleCloseBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}

	if err := s.sessions.CloseBook(r.Context(), id); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleGetSession returns the current session snapshot.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	response.Success(w, sessionState(sess), s.logger)
}

// handleNavigate jumps the surface to a chapter target or position.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}

	var req NavigateRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validate.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := sess.Navigate(req.Target); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleApplySettings validates and pushes display settings.
func (s *Server) handleApplySettings(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}

	var req SettingsRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validate.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	settings := domain.ReaderSettings{
		Theme:       domain.Theme(req.Theme),
		FontSizePct: req.FontSizePct,
		LineHeight:  req.LineHeight,
	}
	if err := sess.ApplySettings(settings); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, settings, s.logger)
}

// handleSessionSearch runs a full-document search on the open session.
// Zero matches is a successful search with an empty result list.
func (s *Server) handleSessionSearch(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}

	var req SessionSearchRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validate.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	results, err := sess.Search(r.Context(), req.Query)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]any{
		"query":   req.Query,
		"results": results,
	}, s.logger)
}

// handleNextMatch advances to the next search match, wrapping at the end.
func (s *Server) handleNextMatch(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	response.Success(w, map[string]int{"index": sess.NextMatch()}, s.logger)
}

// handlePrevMatch moves to the previous match, wrapping at the start.
func (s *Server) handlePrevMatch(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	response.Success(w, map[string]int{"index": sess.PrevMatch()}, s.logger)
}

// handleSurfaceEvent ingests one rendering-surface event for the book's
// bridge. Malformed events are rejected without touching session state.
func (s *Server) handleSurfaceEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, "Failed to read event body", s.logger)
		return
	}

	if err := s.sessions.Receive(id, data); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleSurfaceCommands streams pending bridge commands to the webview
// as server-sent events.
func (s *Server) handleSurfaceCommands(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	if err := s.hub.ServeStream(id, w, r); err != nil {
		response.HandleError(w, err, s.logger)
	}
}

// handleSurfacePayload serves the raw document bytes the webview renders.
func (s *Server) handleSurfacePayload(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}

	payload, format, err := s.hub.Payload(id)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if len(payload) == 0 {
		response.NotFound(w, "Book has no stored payload", s.logger)
		return
	}

	switch format {
	case domain.FormatPDF:
		w.Header().Set("Content-Type", "application/pdf")
	case domain.FormatEPUB:
		w.Header().Set("Content-Type", "application/epub+zip")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	if _, err := w.Write(payload); err != nil {
		s.logger.Warn("payload write interrupted", "book_id", id, "error", err)
	}
}
