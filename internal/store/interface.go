package store

import (
	"context"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
)

// Store is the persistence surface of the host. Every method is atomic:
// a single statement or a single transaction. Writes fail with *Error
// (ErrStorage and friends); lookups on missing rows fail with ErrNotFound.
//
// Writes for a single book are serialized by the host's single-threaded
// dispatch per session; the store itself adds no versioning or locking,
// progress updates are last-write-wins.
type Store interface {
	BookStore
	BookmarkStore
	CommentStore
	HighlightStore

	// Close releases the underlying database handle.
	Close() error
}

// BookStore owns the books table.
type BookStore interface {
	// CreateBook inserts a book with progress initialized to 0/0.
	// hasPayload records whether the document bytes live in the payload store.
	CreateBook(ctx context.Context, title, path string, format domain.Format, hasPayload bool) (*domain.Book, error)

	// GetBook returns a book by ID, or ErrNotFound.
	GetBook(ctx context.Context, id int64) (*domain.Book, error)

	// ListBooks returns all books in insertion order.
	ListBooks(ctx context.Context) ([]*domain.Book, error)

	// DeleteBook removes a book and, by cascade, every annotation that
	// references it. Deleting an unknown book returns ErrNotFound.
	DeleteBook(ctx context.Context, id int64) error

	// UpdateProgress overwrites the stored progress pair. Last write wins;
	// out-of-order and duplicate writes are accepted as-is.
	UpdateProgress(ctx context.Context, id, position, total int64) error

	// UpdateLocationGeneration records the location-table granularity a
	// reflowable book's positions index into.
	UpdateLocationGeneration(ctx context.Context, id, generation int64) error
}

// BookmarkStore owns the bookmarks table.
type BookmarkStore interface {
	CreateBookmark(ctx context.Context, bookID, position int64, preview string) (*domain.Bookmark, error)

	// DeleteBookmark removes the bookmark at exactly (bookID, position).
	DeleteBookmark(ctx context.Context, bookID, position int64) error

	// ListBookmarks returns bookmarks ordered by creation time descending.
	ListBookmarks(ctx context.Context, bookID int64) ([]*domain.Bookmark, error)

	// IsBookmarked reports whether a bookmark exists at exactly
	// (bookID, position). No tolerance window is applied.
	IsBookmarked(ctx context.Context, bookID, position int64) (bool, error)
}

// CommentStore owns the comments table.
type CommentStore interface {
	CreateComment(ctx context.Context, bookID, position int64, selection, body string) (*domain.Comment, error)

	// ListComments returns comments ordered by position ascending,
	// creation order breaking ties.
	ListComments(ctx context.Context, bookID int64) ([]*domain.Comment, error)

	DeleteComment(ctx context.Context, id int64) error
}

// HighlightStore owns the highlights table.
type HighlightStore interface {
	CreateHighlight(ctx context.Context, h *domain.Highlight) error

	ListHighlights(ctx context.Context, bookID int64) ([]*domain.Highlight, error)

	// DeleteHighlight removes the highlight whose range reference matches
	// exactly. The reference is treated as an opaque token.
	DeleteHighlight(ctx context.Context, rangeRef string) error
}

// PayloadStore holds imported document bytes, keyed by book ID.
// Implemented by the badger-backed blob store.
type PayloadStore interface {
	PutPayload(ctx context.Context, bookID int64, data []byte) error
	GetPayload(ctx context.Context, bookID int64) ([]byte, error)
	DeletePayload(ctx context.Context, bookID int64) error
	Close() error
}

// SearchIndexer keeps the library search index in sync with book
// mutations. Implemented by the bleve index; a no-op is used in tests.
type SearchIndexer interface {
	IndexBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, bookID int64) error
}

// NoopSearchIndexer is a no-op implementation for testing.
type NoopSearchIndexer struct{}

// IndexBook is a no-op.
func (NoopSearchIndexer) IndexBook(context.Context, *domain.Book) error { return nil }

// DeleteBook is a no-op.
func (NoopSearchIndexer) DeleteBook(context.Context, int64) error { return nil }

// NewNoopSearchIndexer creates a new no-op search indexer for testing.
func NewNoopSearchIndexer() SearchIndexer {
	return NoopSearchIndexer{}
}
