package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
)

// setupTestIndex creates a temporary search index for testing.
func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	index, err := NewIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func testBook(id int64, title, path string, format domain.Format) *domain.Book {
	return &domain.Book{
		ID:        id,
		Title:     title,
		Path:      path,
		Format:    format,
		CreatedAt: time.Now(),
	}
}

func TestNewIndexEmpty(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestIndexBookAndSearch(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexBook(ctx, testBook(1, "The Hobbit", "/books/hobbit.epub", domain.FormatEPUB)))
	require.NoError(t, index.IndexBook(ctx, testBook(2, "Moby Dick", "/books/moby-dick.pdf", domain.FormatPDF)))

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	result, err := index.Search(ctx, Params{Query: "hobbit", Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, int64(1), result.Hits[0].BookID)
	assert.Equal(t, "The Hobbit", result.Hits[0].Title)
	assert.Equal(t, "hobbit.epub", result.Hits[0].Filename)
	assert.Equal(t, "epub", result.Hits[0].Format)
}

func TestSearchByFilename(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexBook(ctx, testBook(7, "Collected Essays", "/inbox/montaigne-essays.epub", domain.FormatEPUB)))

	result, err := index.Search(ctx, Params{Query: "montaigne"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, int64(7), result.Hits[0].BookID)
}

func TestSearchNoMatches(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexBook(ctx, testBook(1, "The Hobbit", "/books/hobbit.epub", domain.FormatEPUB)))

	result, err := index.Search(ctx, Params{Query: "zzzzqqqq"})
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
	assert.Equal(t, uint64(0), result.Total)
}

func TestSearchFormatFilter(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexBook(ctx, testBook(1, "Manual", "/books/manual.pdf", domain.FormatPDF)))
	require.NoError(t, index.IndexBook(ctx, testBook(2, "Manual", "/books/manual.epub", domain.FormatEPUB)))

	result, err := index.Search(ctx, Params{Query: "manual", Format: "pdf"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, int64(1), result.Hits[0].BookID)
}

func TestEmptyQueryListsAll(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexBook(ctx, testBook(1, "Alpha", "/books/a.epub", domain.FormatEPUB)))
	require.NoError(t, index.IndexBook(ctx, testBook(2, "Beta", "/books/b.epub", domain.FormatEPUB)))

	result, err := index.Search(ctx, Params{})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
	assert.Len(t, result.Hits, 2)
}

func TestDeleteBook(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexBook(ctx, testBook(1, "The Hobbit", "/books/hobbit.epub", domain.FormatEPUB)))
	require.NoError(t, index.DeleteBook(ctx, 1))

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	// Deleting again is harmless.
	require.NoError(t, index.DeleteBook(ctx, 1))
}

func TestReindexFromBook(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	// A stale entry that the rebuild should discard.
	require.NoError(t, index.IndexBook(ctx, testBook(99, "Ghost", "/books/ghost.epub", domain.FormatEPUB)))

	books := &stubBookStore{books: []*domain.Book{
		testBook(1, "The Hobbit", "/books/hobbit.epub", domain.FormatEPUB),
		testBook(2, "Moby Dick", "/books/moby-dick.pdf", domain.FormatPDF),
	}}
	require.NoError(t, index.Reindex(ctx, books))

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	result, err := index.Search(ctx, Params{Query: "ghost"})
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

// stubBookStore backs Reindex tests without a real database.
type stubBookStore struct {
	books []*domain.Book
}

func (s *stubBookStore) CreateBook(context.Context, string, string, domain.Format, bool) (*domain.Book, error) {
	panic("not used")
}

func (s *stubBookStore) GetBook(context.Context, int64) (*domain.Book, error) {
	panic("not used")
}

func (s *stubBookStore) ListBooks(context.Context) ([]*domain.Book, error) {
	return s.books, nil
}

func (s *stubBookStore) DeleteBook(context.Context, int64) error { panic("not used") }

func (s *stubBookStore) UpdateProgress(context.Context, int64, int64, int64) error {
	panic("not used")
}

func (s *stubBookStore) UpdateLocationGeneration(context.Context, int64, int64) error {
	panic("not used")
}
