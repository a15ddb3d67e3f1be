package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	"github.com/pagemarkapp/pagemark-host/internal/store"
)

// CreateComment saves a free-text note at a position. The selection is
// quoted-source metadata, it does not position the comment.
func (s *Store) CreateComment(ctx context.Context, bookID, position int64, selection, body string) (*domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, store.Invalidf("comment body cannot be empty")
	}
	if position < 0 {
		return nil, store.Invalidf("negative position %d", position)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (book_id, position, selection, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		bookID, position, selection, body, formatTime(now),
	)
	if err != nil {
		return nil, storageErr("insert comment", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("insert comment", err)
	}

	return &domain.Comment{
		ID:        id,
		BookID:    bookID,
		Position:  position,
		Selection: selection,
		Body:      body,
		CreatedAt: now,
	}, nil
}

// ListComments returns comments ordered by position ascending, creation
// order breaking ties.
func (s *Store) ListComments(ctx context.Context, bookID int64) ([]*domain.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, position, selection, body, created_at
		FROM comments
		WHERE book_id = ?
		ORDER BY position ASC, id ASC`, bookID)
	if err != nil {
		return nil, storageErr("list comments", err)
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		var c domain.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.BookID, &c.Position, &c.Selection, &c.Body, &createdAt); err != nil {
			return nil, storageErr("scan comment", err)
		}
		c.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, storageErr("parse comment time", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list comments", err)
	}
	return comments, nil
}

// DeleteComment removes a comment by ID.
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete comment", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete comment", err)
	}
	if affected == 0 {
		return store.NotFoundf("comment %d not found", id)
	}
	return nil
}
