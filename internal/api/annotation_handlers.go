package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/pagemarkapp/pagemark-host/internal/http/response"
)

// AddCommentRequest represents the request body for adding a comment.
type AddCommentRequest struct {
	Body string `json:"body" validate:"required,max=4096"`
}

// AddHighlightRequest represents the request body for highlighting the
// active selection. Color is optional; the session default applies.
type AddHighlightRequest struct {
	Color string `json:"color" validate:"omitempty,max=32"`
}

// handleToggleBookmark toggles the bookmark at the current position and
// returns the resulting state.
func (s *Server) handleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}

	bookmarked, err := sess.ToggleBookmark(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]bool{"bookmarked": bookmarked}, s.logger)
}

// handleAddComment attaches a comment to the active selection.
func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}

	var req AddCommentRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validate.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	comment, err := sess.AddComment(r.Context(), req.Body)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, comment, s.logger)
}

// handleAddHighlight turns the active selection into a highlight.
func (s *Server) handleAddHighlight(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}

	var req AddHighlightRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validate.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	highlight, err := sess.HighlightSelection(r.Context(), req.Color)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, highlight, s.logger)
}

// handleRemoveHighlight removes the highlight whose range reference
// matches the range_ref query parameter exactly. The reference is opaque
// and may contain any characters, so it travels as a query value rather
// than a path segment.
func (s *Server) handleRemoveHighlight(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}

	rangeRef := r.URL.Query().Get("range_ref")
	if rangeRef == "" {
		response.BadRequest(w, "Range reference is required", s.logger)
		return
	}

	if err := sess.RemoveHighlight(r.Context(), rangeRef); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleCopySelection resolves the selection as a copy and returns its
// text for the host clipboard.
func (s *Server) handleCopySelection(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}

	text, err := sess.CopySelection()
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]string{"text": text}, s.logger)
}

// handleDiscardSelection drops the active selection without an action.
func (s *Server) handleDiscardSelection(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}

	sess.DiscardSelection()
	response.NoContent(w)
}
