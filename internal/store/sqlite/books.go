package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	"github.com/pagemarkapp/pagemark-host/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, title, path, format, current_position, total_positions,
	location_generation, has_payload, created_at, updated_at`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		format     string
		hasPayload int
		createdAt  string
		updatedAt  string
	)

	err := scanner.Scan(
		&b.ID,
		&b.Title,
		&b.Path,
		&format,
		&b.CurrentPosition,
		&b.TotalPositions,
		&b.LocationGeneration,
		&hasPayload,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Format = domain.Format(format)
	b.HasPayload = hasPayload != 0

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// CreateBook inserts a book with progress initialized to 0/0.
func (s *Store) CreateBook(ctx context.Context, title, path string, format domain.Format, hasPayload bool) (*domain.Book, error) {
	if format != domain.FormatPDF && format != domain.FormatEPUB {
		return nil, store.Invalidf("unsupported format %q", format)
	}

	now := time.Now()
	payload := 0
	if hasPayload {
		payload = 1
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO books (title, path, format, current_position, total_positions, has_payload, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, ?, ?, ?)`,
		title, path, string(format), payload, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, storageErr("insert book", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("insert book", err)
	}

	return &domain.Book{
		ID:         id,
		Title:      title,
		Path:       path,
		Format:     format,
		HasPayload: hasPayload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// GetBook returns a book by ID, or ErrNotFound.
func (s *Store) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id)

	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundf("book %d not found", id)
	}
	if err != nil {
		return nil, storageErr("get book", err)
	}
	return book, nil
}

// ListBooks returns all books in insertion order.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY id ASC`)
	if err != nil {
		return nil, storageErr("list books", err)
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, storageErr("scan book", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list books", err)
	}
	return books, nil
}

// DeleteBook removes a book and cascades to all annotation tables.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete book", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete book", err)
	}
	if affected == 0 {
		return store.NotFoundf("book %d not found", id)
	}
	return nil
}

// UpdateProgress overwrites the stored progress pair. Last write wins.
func (s *Store) UpdateProgress(ctx context.Context, id, position, total int64) error {
	if position < 0 || total < 0 {
		return store.Invalidf("negative progress %d/%d", position, total)
	}
	if total > 0 && position > total {
		return store.Invalidf("position %d exceeds total %d", position, total)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET current_position = ?, total_positions = ?, updated_at = ?
		WHERE id = ?`,
		position, total, formatTime(time.Now()), id,
	)
	if err != nil {
		return storageErr("update progress", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("update progress", err)
	}
	if affected == 0 {
		return store.NotFoundf("book %d not found", id)
	}
	return nil
}

// UpdateLocationGeneration records the location-table granularity of a
// reflowable book's position indices.
func (s *Store) UpdateLocationGeneration(ctx context.Context, id, generation int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET location_generation = ?, updated_at = ?
		WHERE id = ?`,
		generation, formatTime(time.Now()), id,
	)
	if err != nil {
		return storageErr("update location generation", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("update location generation", err)
	}
	if affected == 0 {
		return store.NotFoundf("book %d not found", id)
	}
	return nil
}
