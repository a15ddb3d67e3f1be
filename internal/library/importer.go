// Package library imports documents into the store and keeps the library
// consistent: book rows, payload blobs and the search index move together.
package library

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	domainerrors "github.com/pagemarkapp/pagemark-host/internal/errors"
	"github.com/pagemarkapp/pagemark-host/internal/store"
)

// Service imports, lists and deletes library books.
type Service struct {
	store    store.Store
	payloads store.PayloadStore
	index    store.SearchIndexer
	logger   *slog.Logger
}

// NewService creates the library service.
func NewService(st store.Store, payloads store.PayloadStore, index store.SearchIndexer, logger *slog.Logger) *Service {
	return &Service{store: st, payloads: payloads, index: index, logger: logger}
}

// ImportFile imports a document from disk by value: the bytes are copied
// into the payload store so the library survives the source file moving.
func (s *Service) ImportFile(ctx context.Context, path string) (*domain.Book, error) {
	format, err := domain.FormatForPath(path)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	data, err := os.ReadFile(path) //#nosec G304 -- import path comes from the user's file picker or inbox
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeNotFound, "read document %s", path)
	}

	return s.Import(ctx, "", path, format, data)
}

// Import stores a document. An empty title is filled from the document's
// own metadata when the format carries any, else derived from the filename.
// For fixed-layout documents the page count is probed at import so progress
// starts at 0/total; reflowable totals stay 0 until the surface builds its
// location table.
func (s *Service) Import(ctx context.Context, title, path string, format domain.Format, payload []byte) (*domain.Book, error) {
	if len(payload) == 0 {
		return nil, domainerrors.Validation("document payload is empty")
	}

	var total int64
	switch format {
	case domain.FormatPDF:
		count, err := pdfPageCount(payload)
		if err != nil {
			// The surface gets another chance to establish the total on
			// first render; a failed probe only delays it.
			s.logger.Warn("pdf page count probe failed", slog.String("path", path), "error", err)
		} else {
			total = int64(count)
		}
	case domain.FormatEPUB:
		if title == "" {
			if t, err := epubTitle(payload); err != nil {
				s.logger.Warn("epub metadata probe failed", slog.String("path", path), "error", err)
			} else {
				title = t
			}
		}
	}

	if title == "" {
		title = titleFromPath(path)
	}

	book, err := s.store.CreateBook(ctx, title, path, format, true)
	if err != nil {
		return nil, err
	}

	if err := s.payloads.PutPayload(ctx, book.ID, payload); err != nil {
		// Keep the library consistent: a book without its payload is
		// unopenable, so roll the row back.
		if delErr := s.store.DeleteBook(ctx, book.ID); delErr != nil {
			s.logger.Error("rollback of half-imported book failed",
				slog.Int64("book_id", book.ID), "error", delErr)
		}
		return nil, err
	}

	if total > 0 {
		if err := s.store.UpdateProgress(ctx, book.ID, 0, total); err != nil {
			s.logger.Warn("recording probed page count failed",
				slog.Int64("book_id", book.ID), "error", err)
		} else {
			book.TotalPositions = total
		}
	}

	// Search rot is recoverable with a reindex, so indexing failure does
	// not fail the import.
	if err := s.index.IndexBook(ctx, book); err != nil {
		s.logger.Warn("search indexing failed", slog.Int64("book_id", book.ID), "error", err)
	}

	s.logger.Info("book imported",
		slog.Int64("book_id", book.ID),
		slog.String("title", book.Title),
		slog.String("format", string(format)),
		slog.Int64("total_positions", book.TotalPositions))
	return book, nil
}

// List returns all books in insertion order.
func (s *Service) List(ctx context.Context) ([]*domain.Book, error) {
	return s.store.ListBooks(ctx)
}

// Get returns one book.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Book, error) {
	return s.store.GetBook(ctx, id)
}

// HasPath reports whether a book with this source path already exists.
// The inbox watcher uses it to keep re-settled files from importing twice.
func (s *Service) HasPath(ctx context.Context, path string) (bool, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return false, err
	}
	for _, b := range books {
		if b.Path == path {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes a book, its annotations (by cascade) and its payload.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteBook(ctx, id); err != nil {
		return err
	}
	// Payload removal is idempotent; books imported by reference have none.
	if err := s.payloads.DeletePayload(ctx, id); err != nil {
		s.logger.Warn("payload removal failed", slog.Int64("book_id", id), "error", err)
	}
	if err := s.index.DeleteBook(ctx, id); err != nil {
		s.logger.Warn("search index removal failed", slog.Int64("book_id", id), "error", err)
	}
	return nil
}

// titleFromPath derives a display title from a filename.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.NewReplacer("_", " ", "-", " ").Replace(title)
	return strings.Join(strings.Fields(title), " ")
}
