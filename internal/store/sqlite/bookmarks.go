package sqlite

import (
	"context"
	"time"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	"github.com/pagemarkapp/pagemark-host/internal/store"
)

// CreateBookmark saves a reading position with its preview snippet.
// Uniqueness per (book, position) is the annotation manager's toggle
// contract, not a schema constraint.
func (s *Store) CreateBookmark(ctx context.Context, bookID, position int64, preview string) (*domain.Bookmark, error) {
	if position < 0 {
		return nil, store.Invalidf("negative position %d", position)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (book_id, position, preview, created_at)
		VALUES (?, ?, ?, ?)`,
		bookID, position, preview, formatTime(now),
	)
	if err != nil {
		return nil, storageErr("insert bookmark", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("insert bookmark", err)
	}

	return &domain.Bookmark{
		ID:        id,
		BookID:    bookID,
		Position:  position,
		Preview:   preview,
		CreatedAt: now,
	}, nil
}

// DeleteBookmark removes the bookmark at exactly (bookID, position).
func (s *Store) DeleteBookmark(ctx context.Context, bookID, position int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE book_id = ? AND position = ?`,
		bookID, position,
	)
	if err != nil {
		return storageErr("delete bookmark", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete bookmark", err)
	}
	if affected == 0 {
		return store.NotFoundf("no bookmark at position %d", position)
	}
	return nil
}

// ListBookmarks returns bookmarks for a book, newest first.
func (s *Store) ListBookmarks(ctx context.Context, bookID int64) ([]*domain.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, position, preview, created_at
		FROM bookmarks
		WHERE book_id = ?
		ORDER BY created_at DESC, id DESC`, bookID)
	if err != nil {
		return nil, storageErr("list bookmarks", err)
	}
	defer rows.Close()

	var bookmarks []*domain.Bookmark
	for rows.Next() {
		var bm domain.Bookmark
		var createdAt string
		if err := rows.Scan(&bm.ID, &bm.BookID, &bm.Position, &bm.Preview, &createdAt); err != nil {
			return nil, storageErr("scan bookmark", err)
		}
		bm.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, storageErr("parse bookmark time", err)
		}
		bookmarks = append(bookmarks, &bm)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list bookmarks", err)
	}
	return bookmarks, nil
}

// IsBookmarked reports existence of a bookmark at exactly (bookID, position).
// Exact match only: reflowable location drift produces false negatives,
// a documented limitation pending a tolerance policy.
func (s *Store) IsBookmarked(ctx context.Context, bookID, position int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM bookmarks WHERE book_id = ? AND position = ?`,
		bookID, position,
	).Scan(&count)
	if err != nil {
		return false, storageErr("check bookmark", err)
	}
	return count > 0, nil
}
