// Package surface connects reading sessions to the embedded rendering
// webview. Outbound bridge commands stream to the webview over SSE;
// inbound events arrive through the HTTP event ingest endpoint. The
// webview is a separate fault domain: a stalled or dead stream consumer
// drops commands, it never blocks the host.
package surface

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pagemarkapp/pagemark-host/internal/bridge"
	"github.com/pagemarkapp/pagemark-host/internal/domain"
	"github.com/pagemarkapp/pagemark-host/internal/store"
)

const (
	// commandBuffer is how many undelivered commands a surface holds
	// before Send starts dropping.
	commandBuffer = 64

	heartbeatInterval = 30 * time.Second
)

// StreamSurface delivers commands for one open book. It implements
// bridge.Surface on the sending side and serves the SSE stream the
// webview consumes on the other.
type StreamSurface struct {
	bookID   int64
	payload  []byte
	format   domain.Format
	commands chan bridge.Command
	logger   *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// Send enqueues a command for the webview. Delivery is fire-and-forget:
// with no consumer attached or the buffer full the command is dropped.
func (s *StreamSurface) Send(cmd bridge.Command) error {
	select {
	case <-s.closed:
		return fmt.Errorf("surface for book %d is closed", s.bookID)
	default:
	}

	select {
	case s.commands <- cmd:
		return nil
	default:
		s.logger.Warn("surface command buffer full, dropping",
			slog.Int64("book_id", s.bookID),
			slog.String("action", string(cmd.Action)))
		return nil
	}
}

// Payload returns the document bytes and format for the webview loader.
func (s *StreamSurface) Payload() ([]byte, domain.Format) {
	return s.payload, s.format
}

// Close stops the stream; any connected consumer unblocks.
func (s *StreamSurface) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// ServeStream streams pending commands as SSE until the consumer
// disconnects or the surface closes.
func (s *StreamSurface) ServeStream(w http.ResponseWriter, r *http.Request) {
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		s.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	if err := sendEvent(w, rc, "connected", map[string]int64{"book_id": s.bookID}); err != nil {
		s.logger.Warn("failed to send initial stream message", slog.String("error", err.Error()))
		return
	}

	ctx := r.Context()
	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case cmd := <-s.commands:
			if err := sendEvent(w, rc, "command", cmd); err != nil {
				s.logger.Info("stream consumer disconnected during send",
					slog.Int64("book_id", s.bookID))
				return
			}

		case <-heartbeatTicker.C:
			if err := sendEvent(w, rc, "heartbeat", map[string]int64{"ts": time.Now().UnixMilli()}); err != nil {
				s.logger.Info("stream consumer disconnected during heartbeat",
					slog.Int64("book_id", s.bookID))
				return
			}

		case <-s.closed:
			return

		case <-ctx.Done():
			return
		}
	}
}

// sendEvent writes one SSE event.
func sendEvent(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return err
	}
	return rc.Flush()
}

// Opener creates and tracks one StreamSurface per open book.
type Opener struct {
	logger *slog.Logger

	mu       sync.Mutex
	surfaces map[int64]*StreamSurface
}

// NewOpener creates the surface opener.
func NewOpener(logger *slog.Logger) *Opener {
	return &Opener{
		logger:   logger,
		surfaces: make(map[int64]*StreamSurface),
	}
}

// OpenSurface creates the surface for a book. The bridge owns the
// returned surface; it stays registered here until the session context
// ends so the HTTP layer can route stream and payload requests to it.
func (o *Opener) OpenSurface(ctx context.Context, book *domain.Book, payload []byte) (bridge.Surface, error) {
	s := &StreamSurface{
		bookID:   book.ID,
		payload:  payload,
		format:   book.Format,
		commands: make(chan bridge.Command, commandBuffer),
		logger:   o.logger,
		closed:   make(chan struct{}),
	}

	o.mu.Lock()
	if old, ok := o.surfaces[book.ID]; ok {
		old.Close()
	}
	o.surfaces[book.ID] = s
	o.mu.Unlock()

	// Unregister when the session's context is canceled.
	go func() {
		<-ctx.Done()
		s.Close()
		o.mu.Lock()
		if o.surfaces[book.ID] == s {
			delete(o.surfaces, book.ID)
		}
		o.mu.Unlock()
	}()

	return s, nil
}

// ServeStream attaches an SSE consumer to the book's surface.
func (o *Opener) ServeStream(bookID int64, w http.ResponseWriter, r *http.Request) error {
	o.mu.Lock()
	s, ok := o.surfaces[bookID]
	o.mu.Unlock()
	if !ok {
		return store.NotFoundf("no rendering surface for book %d", bookID)
	}
	s.ServeStream(w, r)
	return nil
}

// Payload returns the document bytes for the webview loader.
func (o *Opener) Payload(bookID int64) ([]byte, domain.Format, error) {
	o.mu.Lock()
	s, ok := o.surfaces[bookID]
	o.mu.Unlock()
	if !ok {
		return nil, "", store.NotFoundf("no rendering surface for book %d", bookID)
	}
	payload, format := s.Payload()
	return payload, format, nil
}
