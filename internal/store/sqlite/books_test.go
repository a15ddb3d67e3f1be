package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	"github.com/pagemarkapp/pagemark-host/internal/store"
)

func TestCreateAndGetBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book, err := s.CreateBook(ctx, "Doc", "/path/doc.pdf", domain.FormatPDF, false)
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if book.ID != 1 {
		t.Errorf("first book ID: got %d, want 1", book.ID)
	}
	if book.CurrentPosition != 0 || book.TotalPositions != 0 {
		t.Errorf("new book progress: got %d/%d, want 0/0", book.CurrentPosition, book.TotalPositions)
	}

	got, err := s.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Title != "Doc" {
		t.Errorf("Title: got %q, want %q", got.Title, "Doc")
	}
	if got.Path != "/path/doc.pdf" {
		t.Errorf("Path: got %q, want %q", got.Path, "/path/doc.pdf")
	}
	if got.Format != domain.FormatPDF {
		t.Errorf("Format: got %q, want pdf", got.Format)
	}
	if got.HasPayload {
		t.Error("HasPayload should be false")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not persisted")
	}
}

func TestCreateBookRejectsUnknownFormat(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateBook(context.Background(), "Doc", "/doc.mobi", "mobi", false)
	if err == nil {
		t.Fatal("unknown format accepted")
	}
	var serr *store.Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected store.Error, got %T", err)
	}
}

func TestGetBookNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBook(context.Background(), 999)
	if err == nil {
		t.Fatal("expected not found")
	}
	var serr *store.Error
	if !errors.As(err, &serr) || serr.Code != store.ErrNotFound.Code {
		t.Errorf("expected not-found store error, got %v", err)
	}
}

func TestListBooksInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestBook(t, s, "first.pdf", domain.FormatPDF)
	insertTestBook(t, s, "second.epub", domain.FormatEPUB)
	insertTestBook(t, s, "third.pdf", domain.FormatPDF)

	books, err := s.ListBooks(ctx)
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(books) != 3 {
		t.Fatalf("got %d books, want 3", len(books))
	}
	want := []string{"first.pdf", "second.epub", "third.pdf"}
	for i, title := range want {
		if books[i].Title != title {
			t.Errorf("books[%d]: got %q, want %q", i, books[i].Title, title)
		}
	}
}

func TestUpdateProgressLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	book := insertTestBook(t, s, "doc.pdf", domain.FormatPDF)

	// Out-of-order sequence: the final stored value is the last applied
	// write, not the maximum.
	for _, pos := range []int64{5, 3, 8} {
		if err := s.UpdateProgress(ctx, book.ID, pos, 120); err != nil {
			t.Fatalf("UpdateProgress(%d): %v", pos, err)
		}
	}

	got, err := s.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.CurrentPosition != 8 {
		t.Errorf("CurrentPosition: got %d, want 8", got.CurrentPosition)
	}
	if got.TotalPositions != 120 {
		t.Errorf("TotalPositions: got %d, want 120", got.TotalPositions)
	}
}

func TestUpdateProgressScenario(t *testing.T) {
	// Import a PDF, then a progress event {42, 120} arrives.
	s := newTestStore(t)
	ctx := context.Background()

	book, err := s.CreateBook(ctx, "Doc", "/path/doc.pdf", domain.FormatPDF, false)
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if book.ID != 1 {
		t.Fatalf("book ID: got %d, want 1", book.ID)
	}

	if err := s.UpdateProgress(ctx, 1, 42, 120); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	got, err := s.GetBook(ctx, 1)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.CurrentPosition != 42 {
		t.Errorf("CurrentPosition: got %d, want 42", got.CurrentPosition)
	}
}

func TestUpdateProgressInvariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	book := insertTestBook(t, s, "doc.pdf", domain.FormatPDF)

	if err := s.UpdateProgress(ctx, book.ID, -1, 10); err == nil {
		t.Error("negative position accepted")
	}
	if err := s.UpdateProgress(ctx, book.ID, 11, 10); err == nil {
		t.Error("position beyond total accepted")
	}
	// Unknown total accepts any position.
	if err := s.UpdateProgress(ctx, book.ID, 7, 0); err != nil {
		t.Errorf("position with unknown total rejected: %v", err)
	}
	if err := s.UpdateProgress(ctx, 999, 1, 10); err == nil {
		t.Error("progress write for missing book accepted")
	}
}

func TestUpdateLocationGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	book := insertTestBook(t, s, "doc.epub", domain.FormatEPUB)

	if err := s.UpdateLocationGeneration(ctx, book.ID, 1600); err != nil {
		t.Fatalf("UpdateLocationGeneration: %v", err)
	}

	got, err := s.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.LocationGeneration != 1600 {
		t.Errorf("LocationGeneration: got %d, want 1600", got.LocationGeneration)
	}
}

func TestDeleteBookCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	book := insertTestBook(t, s, "doc.pdf", domain.FormatPDF)

	if _, err := s.CreateBookmark(ctx, book.ID, 12, "preview"); err != nil {
		t.Fatalf("CreateBookmark: %v", err)
	}
	if _, err := s.CreateComment(ctx, book.ID, 12, "quoted", "a note"); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if err := s.CreateHighlight(ctx, &domain.Highlight{
		ID: "hl-1", BookID: book.ID, RangeRef: "epubcfi(/6/4!/4/2)", Color: "green",
	}); err != nil {
		t.Fatalf("CreateHighlight: %v", err)
	}

	if err := s.DeleteBook(ctx, book.ID); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}

	// No orphans may survive the cascade.
	bookmarks, err := s.ListBookmarks(ctx, book.ID)
	if err != nil {
		t.Fatalf("ListBookmarks: %v", err)
	}
	if len(bookmarks) != 0 {
		t.Errorf("bookmarks survived cascade: %d", len(bookmarks))
	}
	comments, err := s.ListComments(ctx, book.ID)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(comments) != 0 {
		t.Errorf("comments survived cascade: %d", len(comments))
	}
	highlights, err := s.ListHighlights(ctx, book.ID)
	if err != nil {
		t.Fatalf("ListHighlights: %v", err)
	}
	if len(highlights) != 0 {
		t.Errorf("highlights survived cascade: %d", len(highlights))
	}
}

func TestDeleteBookWithoutAnnotations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	book := insertTestBook(t, s, "plain.pdf", domain.FormatPDF)

	// Deleting a book with zero annotations must not error.
	if err := s.DeleteBook(ctx, book.ID); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}

	if err := s.DeleteBook(ctx, book.ID); err == nil {
		t.Error("second delete should report not found")
	}
}
