// Package blob stores raw book payloads (the bytes handed to the rendering
// surface) in a Badger database keyed by book ID.
package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/pagemarkapp/pagemark-host/internal/store"
)

// Store wraps a Badger database instance holding book payloads.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ store.PayloadStore = (*Store)(nil)

// Open opens (or creates) the payload database at the given path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload db: %w", err)
	}

	if logger != nil {
		logger.Info("payload database opened", "path", path)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing payload database")
	}
	return s.db.Close()
}

func payloadKey(bookID int64) []byte {
	return fmt.Appendf(nil, "payload:%d", bookID)
}

// PutPayload stores the payload bytes for a book, replacing any previous value.
func (s *Store) PutPayload(_ context.Context, bookID int64, data []byte) error {
	if len(data) == 0 {
		return store.Invalidf("payload for book %d is empty", bookID)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(payloadKey(bookID), data)
	})
	if err != nil {
		return store.Storagef("store payload for book %d: %v", bookID, err)
	}
	return nil
}

// GetPayload retrieves the payload bytes for a book.
func (s *Store) GetPayload(_ context.Context, bookID int64) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(payloadKey(bookID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.NotFoundf("payload for book %d not found", bookID)
	}
	if err != nil {
		return nil, store.Storagef("read payload for book %d: %v", bookID, err)
	}
	return data, nil
}

// DeletePayload removes a book's payload. Deleting a payload that was never
// stored is not an error; removal is part of book deletion and must not fail
// for payload-less books.
func (s *Store) DeletePayload(_ context.Context, bookID int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(payloadKey(bookID))
	})
	if err != nil {
		return store.Storagef("delete payload for book %d: %v", bookID, err)
	}
	return nil
}
