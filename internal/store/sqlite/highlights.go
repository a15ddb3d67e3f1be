package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	"github.com/pagemarkapp/pagemark-host/internal/store"
)

// CreateHighlight saves a color-tagged range. The range reference is an
// opaque token; (book_id, range_ref) is unique so re-highlighting the
// same span conflicts instead of stacking.
func (s *Store) CreateHighlight(ctx context.Context, h *domain.Highlight) error {
	if h.RangeRef == "" {
		return store.Invalidf("highlight range reference cannot be empty")
	}
	if h.Color == "" {
		return store.Invalidf("highlight color cannot be empty")
	}

	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO highlights (id, book_id, range_ref, color, selected_text, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.BookID, h.RangeRef, h.Color, h.SelectedText, h.Position, formatTime(h.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithMessage("range already highlighted")
		}
		return storageErr("insert highlight", err)
	}
	return nil
}

// ListHighlights returns highlights for a book ordered by position.
func (s *Store) ListHighlights(ctx context.Context, bookID int64) ([]*domain.Highlight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, range_ref, color, selected_text, position, created_at
		FROM highlights
		WHERE book_id = ?
		ORDER BY position ASC, created_at ASC`, bookID)
	if err != nil {
		return nil, storageErr("list highlights", err)
	}
	defer rows.Close()

	var highlights []*domain.Highlight
	for rows.Next() {
		var h domain.Highlight
		var createdAt string
		if err := rows.Scan(&h.ID, &h.BookID, &h.RangeRef, &h.Color, &h.SelectedText, &h.Position, &createdAt); err != nil {
			return nil, storageErr("scan highlight", err)
		}
		h.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, storageErr("parse highlight time", err)
		}
		highlights = append(highlights, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list highlights", err)
	}
	return highlights, nil
}

// DeleteHighlight removes the highlight matching the range reference exactly.
func (s *Store) DeleteHighlight(ctx context.Context, rangeRef string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM highlights WHERE range_ref = ?`, rangeRef)
	if err != nil {
		return storageErr("delete highlight", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete highlight", err)
	}
	if affected == 0 {
		return store.NotFoundf("no highlight for range %q", rangeRef)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
