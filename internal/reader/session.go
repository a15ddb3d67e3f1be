package reader

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	domainerrors "github.com/pagemarkapp/pagemark-host/internal/errors"
	"github.com/pagemarkapp/pagemark-host/internal/store"
)

// SurfaceBridge is the slice of the bridge a session drives. Satisfied by
// *bridge.Bridge; tests substitute a stub.
type SurfaceBridge interface {
	Navigate(target string) error
	ApplySettings(s domain.ReaderSettings) error
	QueryPreview(ctx context.Context) (string, error)
	QuerySearch(ctx context.Context, query string) ([]domain.SearchResult, error)
	NextMatch() error
	PrevMatch() error
	ApplyHighlight(rangeRef, color string) error
	ClearHighlight(rangeRef string) error
}

// Session is the host-side state of one open book: reconciled progress,
// the chapter list, search results, the active selection and the display
// settings. It implements bridge.Handler; all mutation funnels through the
// bridge's single dispatch loop or through the host query surface.
type Session struct {
	book   *domain.Book
	bridge SurfaceBridge
	store  store.Store
	rec    *Reconciler
	logger *slog.Logger

	mu        sync.Mutex
	chapters  []domain.Chapter
	results   []domain.SearchResult
	resultIdx int
	selection *domain.Selection
	settings  domain.ReaderSettings
	fault     string

	// One bookmark toggle in flight per session; concurrent triggers are
	// rejected rather than racing the existence check.
	toggleBusy bool
}

// NewSession creates the session for an open book. The reconciler is seeded
// with the book's stored progress so reopening restores position.
func NewSession(book *domain.Book, br SurfaceBridge, st store.Store, writesPerSec float64, logger *slog.Logger) *Session {
	return &Session{
		book:      book,
		bridge:    br,
		store:     st,
		rec:       NewReconciler(st, st, book.ID, book.CurrentPosition, book.TotalPositions, writesPerSec, logger),
		logger:    logger,
		resultIdx: -1,
		settings:  domain.DefaultReaderSettings(),
	}
}

// OnInit seeds progress state once the surface finishes its first layout
// pass. A zero init position with stored progress means a reopened book:
// the surface is navigated back to the stored position, and the zero is
// dropped by the reconciler's guard.
func (s *Session) OnInit(ctx context.Context, position, total, generation int) {
	if position == 0 && s.book.CurrentPosition > 0 {
		if err := s.bridge.Navigate(strconv.FormatInt(s.book.CurrentPosition, 10)); err != nil {
			s.logger.Warn("position restore failed",
				slog.Int64("book_id", s.book.ID), "error", err)
		}
	}
	if err := s.bridge.ApplySettings(s.Settings()); err != nil {
		s.logger.Warn("settings push failed",
			slog.Int64("book_id", s.book.ID), "error", err)
	}
	s.recordGeneration(ctx, int64(generation))
	s.rec.Apply(ctx, int64(position), int64(total))
}

// recordGeneration persists the location-table granularity the surface
// built its positions against. Stored positions are only comparable to
// live ones within the same generation.
func (s *Session) recordGeneration(ctx context.Context, generation int64) {
	if generation <= 0 || generation == s.book.LocationGeneration {
		return
	}
	if err := s.store.UpdateLocationGeneration(ctx, s.book.ID, generation); err != nil {
		s.logger.Warn("location generation update failed",
			slog.Int64("book_id", s.book.ID), "error", err)
		return
	}
	s.book.LocationGeneration = generation
}

// OnProgress reconciles a position update.
func (s *Session) OnProgress(ctx context.Context, position, total int) {
	s.rec.Apply(ctx, int64(position), int64(total))
}

// OnTOC replaces the in-memory chapter list.
func (s *Session) OnTOC(_ context.Context, chapters []domain.Chapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters = chapters
}

// OnTextSelected tracks the active selection. A newer selection overwrites
// the prior one; whatever action was pending on it is abandoned.
func (s *Session) OnTextSelected(_ context.Context, sel domain.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = &sel
}

// OnSurfaceError marks the session degraded. The document stays open; the
// fault is surfaced through Fault() for the UI to alert on.
func (s *Session) OnSurfaceError(_ context.Context, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = message
}

// Book returns the book this session renders.
func (s *Session) Book() *domain.Book {
	return s.book
}

// Snapshot returns a copy of the book with the session's reconciled
// progress applied, for bounds checks and percent display.
func (s *Session) Snapshot() domain.Book {
	b := *s.book
	b.CurrentPosition = s.rec.Position()
	b.TotalPositions = s.rec.Total()
	return b
}

// Position returns the last reconciled position.
func (s *Session) Position() int64 {
	return s.rec.Position()
}

// Total returns the last reconciled total.
func (s *Session) Total() int64 {
	return s.rec.Total()
}

// Bookmarked reports the bookmark toggle state at the current position.
func (s *Session) Bookmarked() bool {
	return s.rec.Bookmarked()
}

// Chapters returns the current chapter list.
func (s *Session) Chapters() []domain.Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Chapter, len(s.chapters))
	copy(out, s.chapters)
	return out
}

// Selection returns a copy of the active selection, or nil when idle.
func (s *Session) Selection() *domain.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return nil
	}
	sel := *s.selection
	return &sel
}

// Fault returns the last rendering-surface fault message, empty when none.
func (s *Session) Fault() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

// Navigate jumps the surface to a chapter target or position. Numeric
// targets are bounds-checked against the reconciled total; chapter hrefs
// pass through opaque.
func (s *Session) Navigate(target string) error {
	if pos, err := strconv.ParseInt(target, 10, 64); err == nil {
		if b := s.Snapshot(); !b.ValidPosition(pos) {
			return domainerrors.Validationf("position %d out of range 0..%d", pos, b.TotalPositions)
		}
	}
	return s.bridge.Navigate(target)
}

// Search runs a full-document search and replaces the in-memory result
// list. An empty result list is the "nothing found" outcome, not an error.
func (s *Session) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	results, err := s.bridge.QuerySearch(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.results = results
	s.resultIdx = -1
	s.mu.Unlock()
	return results, nil
}

// Results returns the current search result list.
func (s *Session) Results() []domain.SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SearchResult, len(s.results))
	copy(out, s.results)
	return out
}

// NextMatch advances to the next search match, wrapping at the end.
// Returns the new match index, or -1 when there are no results.
func (s *Session) NextMatch() int {
	s.mu.Lock()
	if len(s.results) == 0 {
		s.mu.Unlock()
		return -1
	}
	s.resultIdx = (s.resultIdx + 1) % len(s.results)
	idx := s.resultIdx
	s.mu.Unlock()

	if err := s.bridge.NextMatch(); err != nil {
		s.logger.Warn("next match command failed", "error", err)
	}
	return idx
}

// PrevMatch moves to the previous search match, wrapping at the start.
func (s *Session) PrevMatch() int {
	s.mu.Lock()
	if len(s.results) == 0 {
		s.mu.Unlock()
		return -1
	}
	if s.resultIdx <= 0 {
		s.resultIdx = len(s.results) - 1
	} else {
		s.resultIdx--
	}
	idx := s.resultIdx
	s.mu.Unlock()

	if err := s.bridge.PrevMatch(); err != nil {
		s.logger.Warn("prev match command failed", "error", err)
	}
	return idx
}

// ApplySettings validates and pushes display settings to the surface, and
// keeps them for the next init (theme changes reload the surface).
func (s *Session) ApplySettings(settings domain.ReaderSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return s.bridge.ApplySettings(settings)
}

// Settings returns the session's display settings.
func (s *Session) Settings() domain.ReaderSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Close flushes any pending progress write. The final position must be
// durable even when the rate limiter was holding it back.
func (s *Session) Close(ctx context.Context) error {
	return s.rec.Flush(ctx)
}
