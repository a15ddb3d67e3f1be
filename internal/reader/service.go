package reader

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/pagemarkapp/pagemark-host/internal/bridge"
	"github.com/pagemarkapp/pagemark-host/internal/config"
	"github.com/pagemarkapp/pagemark-host/internal/domain"
	domainerrors "github.com/pagemarkapp/pagemark-host/internal/errors"
	"github.com/pagemarkapp/pagemark-host/internal/store"
)

// SurfaceOpener creates the rendering surface for a book. The production
// opener hands the payload to an embedded webview shim; tests hand back a
// fake. The payload is nil for books imported by path reference only.
type SurfaceOpener interface {
	OpenSurface(ctx context.Context, book *domain.Book, payload []byte) (bridge.Surface, error)
}

type openSession struct {
	session *Session
	bridge  *bridge.Bridge
	cancel  context.CancelFunc
}

// Service opens and closes reading sessions, one per book. Each session
// owns a bridge whose dispatch loop runs until the book is closed or the
// service shuts down.
type Service struct {
	store    store.Store
	payloads store.PayloadStore
	opener   SurfaceOpener
	cfg      config.BridgeConfig
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*openSession
}

// NewService creates the session service.
func NewService(st store.Store, payloads store.PayloadStore, opener SurfaceOpener, cfg config.BridgeConfig, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		payloads: payloads,
		opener:   opener,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[int64]*openSession),
	}
}

// OpenBook opens a reading session for the book, loading its payload and
// starting the bridge dispatch loop. Opening an already-open book returns
// the existing session.
func (s *Service) OpenBook(ctx context.Context, bookID int64) (*Session, error) {
	s.mu.Lock()
	if open, ok := s.sessions[bookID]; ok {
		s.mu.Unlock()
		return open.session, nil
	}
	s.mu.Unlock()

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	payload, err := s.loadPayload(ctx, book)
	if err != nil {
		// Loadability failures are surfaced, not defaulted away.
		return nil, err
	}

	// The surface and dispatch loop outlive the opening request; they run
	// until the book closes or the service shuts down.
	loopCtx, cancel := context.WithCancel(context.Background())

	surface, err := s.opener.OpenSurface(loopCtx, book, payload)
	if err != nil {
		cancel()
		return nil, domainerrors.Wrapf(err, domainerrors.CodeBridgeRuntime, "open rendering surface for book %d", bookID)
	}

	br := bridge.New(surface, s.cfg.QueryTimeout, s.logger)
	session := NewSession(book, br, s.store, s.cfg.ProgressWritesPerSec, s.logger)
	br.SetHandler(session)

	go br.Start(loopCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if open, ok := s.sessions[bookID]; ok {
		// Lost the race to a concurrent open; tear down ours.
		cancel()
		return open.session, nil
	}
	s.sessions[bookID] = &openSession{session: session, bridge: br, cancel: cancel}

	s.logger.Info("reading session opened",
		slog.Int64("book_id", bookID),
		slog.String("title", book.Title),
		slog.String("format", string(book.Format)))
	return session, nil
}

func (s *Service) loadPayload(ctx context.Context, book *domain.Book) ([]byte, error) {
	if !book.HasPayload {
		// Path-referenced import: read the document from disk.
		data, err := os.ReadFile(book.Path)
		if err != nil {
			return nil, domainerrors.Wrapf(err, domainerrors.CodeNotFound, "document file %s", book.Path)
		}
		return data, nil
	}
	return s.payloads.GetPayload(ctx, book.ID)
}

// Session returns the open session for a book, or false.
func (s *Service) Session(bookID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	open, ok := s.sessions[bookID]
	if !ok {
		return nil, false
	}
	return open.session, true
}

// Receive routes a raw surface payload to the book's bridge.
func (s *Service) Receive(bookID int64, data []byte) error {
	s.mu.Lock()
	open, ok := s.sessions[bookID]
	s.mu.Unlock()
	if !ok {
		return domainerrors.NotFoundf("no open session for book %d", bookID)
	}
	return open.bridge.Receive(data)
}

// CloseBook flushes pending progress and tears down the session. Closing a
// book with no open session is a no-op.
func (s *Service) CloseBook(ctx context.Context, bookID int64) error {
	s.mu.Lock()
	open, ok := s.sessions[bookID]
	if ok {
		delete(s.sessions, bookID)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.teardown(ctx, bookID, open)
}

func (s *Service) teardown(ctx context.Context, bookID int64, open *openSession) error {
	// Flush first: the final position must be durable before the bridge
	// stops accepting events.
	flushErr := open.session.Close(ctx)
	if err := open.bridge.Shutdown(ctx); err != nil {
		s.logger.Warn("bridge shutdown failed", slog.Int64("book_id", bookID), "error", err)
	}
	open.cancel()

	s.logger.Info("reading session closed", slog.Int64("book_id", bookID))
	return flushErr
}

// Shutdown closes every open session.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[int64]*openSession)
	s.mu.Unlock()

	var firstErr error
	for bookID, open := range sessions {
		if err := s.teardown(ctx, bookID, open); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
