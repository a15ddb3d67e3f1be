package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
)

// DefaultSettleDelay is how long an inbox file must stop changing before
// it is considered fully written and safe to import.
const DefaultSettleDelay = 2 * time.Second

// pendingFile tracks an inbox file that may still be changing.
type pendingFile struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// InboxWatcher watches a drop folder and imports documents placed in it.
// Writes are debounced: a file is imported only after its size and mtime
// stop changing for a settle delay, so half-copied files never import.
type InboxWatcher struct {
	importer    *Service
	path        string
	settleDelay time.Duration
	logger      *slog.Logger
	watcher     *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pendingFile
}

// NewInboxWatcher creates a watcher for the given drop folder. The folder
// is created if missing.
func NewInboxWatcher(importer *Service, path string, logger *slog.Logger) (*InboxWatcher, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create inbox %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch inbox %s: %w", path, err)
	}

	return &InboxWatcher{
		importer:    importer,
		path:        path,
		settleDelay: DefaultSettleDelay,
		logger:      logger,
		watcher:     watcher,
		pending:     make(map[string]*pendingFile),
	}, nil
}

// Start processes inbox events until ctx is cancelled. Documents already
// sitting in the inbox at startup are picked up first.
func (w *InboxWatcher) Start(ctx context.Context) {
	w.logger.Info("inbox watcher starting", slog.String("path", w.path))

	w.sweep()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watch error", "error", err)
		}
	}
}

// Close stops the underlying watcher and cancels pending settle timers.
func (w *InboxWatcher) Close() error {
	w.mu.Lock()
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

// sweep schedules settling for documents already present in the inbox.
func (w *InboxWatcher) sweep() {
	entries, err := os.ReadDir(w.path)
	if err != nil {
		w.logger.Warn("inbox sweep failed", "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.startSettling(filepath.Join(w.path, entry.Name()))
	}
}

func (w *InboxWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Remove != 0 {
		w.cancelPending(event.Name)
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		w.startSettling(event.Name)
	}
}

// startSettling begins or restarts the settle window for a file.
func (w *InboxWatcher) startSettling(path string) {
	if _, err := domain.FormatForPath(path); err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if p, exists := w.pending[path]; exists {
		p.timer.Stop()
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		return
	}
	if info.IsDir() {
		return
	}

	p := &pendingFile{size: info.Size(), modTime: info.ModTime()}
	p.timer = time.AfterFunc(w.settleDelay, func() {
		w.checkSettled(path)
	})
	w.pending[path] = p
}

// checkSettled imports the file once size and mtime stop moving.
func (w *InboxWatcher) checkSettled(path string) {
	w.mu.Lock()
	p, exists := w.pending[path]
	if !exists {
		w.mu.Unlock()
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		return
	}

	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		// Still being written, restart the window.
		p.size = info.Size()
		p.modTime = info.ModTime()
		p.timer = time.AfterFunc(w.settleDelay, func() {
			w.checkSettled(path)
		})
		w.mu.Unlock()
		return
	}

	delete(w.pending, path)
	w.mu.Unlock()

	w.importSettled(path)
}

func (w *InboxWatcher) importSettled(path string) {
	ctx := context.Background()

	seen, err := w.importer.HasPath(ctx, path)
	if err != nil {
		w.logger.Warn("inbox duplicate check failed", slog.String("path", path), "error", err)
		return
	}
	if seen {
		return
	}

	book, err := w.importer.ImportFile(ctx, path)
	if err != nil {
		w.logger.Error("inbox import failed", slog.String("path", path), "error", err)
		return
	}
	w.logger.Info("inbox document imported",
		slog.String("path", path),
		slog.Int64("book_id", book.ID))
}

func (w *InboxWatcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, exists := w.pending[path]; exists {
		p.timer.Stop()
		delete(w.pending, path)
	}
}
