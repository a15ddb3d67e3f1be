// Package reader runs reading sessions: one per open book, each tying a
// rendering-surface bridge to the persistent store. It reconciles progress
// events into durable state and drives the annotation lifecycle.
package reader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pagemarkapp/pagemark-host/internal/store"
)

type progressUpdate struct {
	position int64
	total    int64
}

// Reconciler converts init/progress events into durable book progress.
// Events may arrive duplicated, stale or out of order; the last applied
// write wins. Writes are rate-limited so a surface streaming position
// updates does not hammer the store, but the trailing event is always
// written.
type Reconciler struct {
	books     store.BookStore
	bookmarks store.BookmarkStore
	limiter   *rate.Limiter
	logger    *slog.Logger
	bookID    int64

	mu         sync.Mutex
	position   int64
	total      int64
	pending    *progressUpdate
	flushTimer *time.Timer
	bookmarked bool
	writeErr   error
}

// NewReconciler creates a reconciler seeded with the book's stored
// progress, so a transient zero from the surface cannot roll it back.
func NewReconciler(books store.BookStore, bookmarks store.BookmarkStore, bookID, position, total int64, writesPerSec float64, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		books:     books,
		bookmarks: bookmarks,
		limiter:   rate.NewLimiter(rate.Limit(writesPerSec), 1),
		logger:    logger,
		bookID:    bookID,
		position:  position,
		total:     total,
	}
}

// Apply reconciles one position signal.
//
// A zero position arriving while a nonzero position is known is a transient
// artifact of the surface re-indexing the document and is dropped. A zero
// position with no prior progress is a legitimate start-of-document state
// and flows through.
func (r *Reconciler) Apply(ctx context.Context, position, total int64) {
	if position < 0 || total < 0 {
		return
	}

	r.mu.Lock()
	if position == 0 && r.position > 0 {
		r.mu.Unlock()
		r.logger.Debug("ignoring transient zero position",
			slog.Int64("book_id", r.bookID),
			slog.Int64("kept_position", r.position))
		return
	}

	r.position = position
	r.total = total
	r.pending = &progressUpdate{position: position, total: total}

	if r.limiter.Allow() {
		u := *r.pending
		r.pending = nil
		r.mu.Unlock()
		r.write(ctx, u)
	} else {
		r.scheduleFlushLocked()
		r.mu.Unlock()
	}

	r.recheckBookmark(ctx, position)
}

// scheduleFlushLocked arms the trailing write. Caller holds r.mu.
func (r *Reconciler) scheduleFlushLocked() {
	if r.flushTimer != nil {
		return
	}
	res := r.limiter.Reserve()
	r.flushTimer = time.AfterFunc(res.Delay(), func() {
		r.mu.Lock()
		r.flushTimer = nil
		if r.pending == nil {
			r.mu.Unlock()
			return
		}
		u := *r.pending
		r.pending = nil
		r.mu.Unlock()
		r.write(context.Background(), u)
	})
}

// Flush writes any pending update immediately. Called when the session
// closes so the final position is durable regardless of the rate limit.
func (r *Reconciler) Flush(ctx context.Context) error {
	r.mu.Lock()
	if r.flushTimer != nil {
		r.flushTimer.Stop()
		r.flushTimer = nil
	}
	if r.pending == nil {
		r.mu.Unlock()
		return nil
	}
	u := *r.pending
	r.pending = nil
	r.mu.Unlock()
	return r.writeErrReturning(ctx, u)
}

func (r *Reconciler) write(ctx context.Context, u progressUpdate) {
	// Progress durability failures must not be swallowed silently; the
	// error is logged loudly and retained for the session to surface.
	if err := r.writeErrReturning(ctx, u); err != nil {
		r.logger.Error("progress write failed",
			slog.Int64("book_id", r.bookID),
			slog.Int64("position", u.position),
			"error", err)
	}
}

func (r *Reconciler) writeErrReturning(ctx context.Context, u progressUpdate) error {
	err := r.books.UpdateProgress(ctx, r.bookID, u.position, u.total)
	r.mu.Lock()
	r.writeErr = err
	r.mu.Unlock()
	return err
}

func (r *Reconciler) recheckBookmark(ctx context.Context, position int64) {
	marked, err := r.bookmarks.IsBookmarked(ctx, r.bookID, position)
	if err != nil {
		// Toggle state is cosmetic; a failed recheck keeps the old value.
		r.logger.Warn("bookmark recheck failed",
			slog.Int64("book_id", r.bookID), "error", err)
		return
	}
	r.mu.Lock()
	r.bookmarked = marked
	r.mu.Unlock()
}

// Position returns the last reconciled position.
func (r *Reconciler) Position() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

// Total returns the last reconciled total.
func (r *Reconciler) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Bookmarked reports the toggle state at the current position, as of the
// last reconciliation or toggle.
func (r *Reconciler) Bookmarked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookmarked
}

// SetBookmarked records the toggle state after an explicit toggle.
func (r *Reconciler) SetBookmarked(marked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookmarked = marked
}

// LastWriteErr returns the error of the most recent progress write, nil
// when it succeeded.
func (r *Reconciler) LastWriteErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeErr
}
