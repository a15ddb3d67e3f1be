package reader

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	domainerrors "github.com/pagemarkapp/pagemark-host/internal/errors"
	"github.com/pagemarkapp/pagemark-host/internal/id"
)

// ToggleBookmark flips the bookmark at the current position. Returns the
// new state: true when a bookmark was created, false when one was removed.
//
// Creating queries the surface for a preview excerpt first; if the query
// fails or yields blank text, the placeholder ellipsis is stored instead.
// Each path is a single store write, so a failure means only "the write
// didn't happen" and the toggle is safe to retry.
func (s *Session) ToggleBookmark(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.toggleBusy {
		s.mu.Unlock()
		return false, domainerrors.Conflict("bookmark toggle already in flight")
	}
	s.toggleBusy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.toggleBusy = false
		s.mu.Unlock()
	}()

	position := s.rec.Position()

	marked, err := s.store.IsBookmarked(ctx, s.book.ID, position)
	if err != nil {
		return false, err
	}

	if marked {
		if err := s.store.DeleteBookmark(ctx, s.book.ID, position); err != nil {
			return true, err
		}
		s.rec.SetBookmarked(false)
		return false, nil
	}

	preview, err := s.bridge.QueryPreview(ctx)
	if err != nil {
		// Preview is decoration; a lost response must not block bookmarking.
		s.logger.Warn("preview query failed, using placeholder",
			slog.Int64("book_id", s.book.ID), "error", err)
		preview = ""
	}
	if strings.TrimSpace(preview) == "" {
		preview = domain.PreviewPlaceholder
	}

	if _, err := s.store.CreateBookmark(ctx, s.book.ID, position, preview); err != nil {
		return false, err
	}
	s.rec.SetBookmarked(true)
	return true, nil
}

// AddComment creates a comment at the current position, quoting the active
// selection. The selection's range reference is stored as metadata only;
// the comment is positioned by document position, not by range.
func (s *Session) AddComment(ctx context.Context, body string) (*domain.Comment, error) {
	s.mu.Lock()
	sel := s.selection
	s.mu.Unlock()

	if sel == nil {
		return nil, domainerrors.Validation("no active selection to comment on")
	}

	comment, err := s.store.CreateComment(ctx, s.book.ID, s.rec.Position(), sel.Text, body)
	if err != nil {
		return nil, err
	}

	s.clearSelection()
	return comment, nil
}

// DefaultHighlightColor is applied when a highlight request names no color.
const DefaultHighlightColor = "yellow"

// HighlightSelection persists a color-tagged highlight over the active
// selection's range and asks the surface to paint it. The paint command is
// fire-and-forget; persistence alone decides whether the highlight exists.
// An empty color falls back to DefaultHighlightColor.
func (s *Session) HighlightSelection(ctx context.Context, color string) (*domain.Highlight, error) {
	if color == "" {
		color = DefaultHighlightColor
	}
	s.mu.Lock()
	sel := s.selection
	s.mu.Unlock()

	if sel == nil {
		return nil, domainerrors.Validation("no active selection to highlight")
	}
	if sel.RangeRef == "" {
		return nil, domainerrors.Validation("selection carries no range reference")
	}

	highlightID, err := id.Generate("hl")
	if err != nil {
		return nil, err
	}
	h := &domain.Highlight{
		ID:           highlightID,
		BookID:       s.book.ID,
		RangeRef:     sel.RangeRef,
		Color:        color,
		SelectedText: sel.Text,
		Position:     s.rec.Position(),
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateHighlight(ctx, h); err != nil {
		return nil, err
	}

	if err := s.bridge.ApplyHighlight(sel.RangeRef, color); err != nil {
		s.logger.Warn("highlight paint command failed",
			slog.Int64("book_id", s.book.ID), "error", err)
	}

	s.clearSelection()
	return h, nil
}

// RemoveHighlight deletes the highlight whose range reference matches
// exactly, and asks the surface to clear its paint.
func (s *Session) RemoveHighlight(ctx context.Context, rangeRef string) error {
	if err := s.store.DeleteHighlight(ctx, rangeRef); err != nil {
		return err
	}

	if err := s.bridge.ClearHighlight(rangeRef); err != nil {
		s.logger.Warn("highlight clear command failed",
			slog.Int64("book_id", s.book.ID), "error", err)
	}
	return nil
}

// CopySelection returns the active selection's text and ends its lifecycle.
func (s *Session) CopySelection() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selection == nil {
		return "", domainerrors.Validation("no active selection to copy")
	}
	text := s.selection.Text
	s.selection = nil
	return text, nil
}

// DiscardSelection ends the active selection's lifecycle without an action.
func (s *Session) DiscardSelection() {
	s.clearSelection()
}

func (s *Session) clearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = nil
}
