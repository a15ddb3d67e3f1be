package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	domainerrors "github.com/pagemarkapp/pagemark-host/internal/errors"
)

// Handler receives classified surface events. The reader session implements
// this; query responses (preview, searchResults) are correlated internally
// and never reach the handler.
type Handler interface {
	OnInit(ctx context.Context, position, total, generation int)
	OnProgress(ctx context.Context, position, total int)
	OnTOC(ctx context.Context, chapters []domain.Chapter)
	OnTextSelected(ctx context.Context, sel domain.Selection)
	OnSurfaceError(ctx context.Context, message string)
}

// Bridge runs the protocol for one open document: it serializes inbound
// surface events through a single dispatch loop, correlates query responses,
// and sends fire-and-forget commands outbound.
type Bridge struct {
	surface      Surface
	pending      *pendingTable
	handler      Handler
	events       chan *Message
	logger       *slog.Logger
	queryTimeout time.Duration
	wg           sync.WaitGroup

	// Shutdown state - protected by shutdownMu
	shutdownMu sync.RWMutex
	shutdown   bool
}

// New creates a Bridge for the given surface. queryTimeout bounds every
// correlated query; a lost response frees its slot instead of stalling the
// caller forever.
func New(surface Surface, queryTimeout time.Duration, logger *slog.Logger) *Bridge {
	return &Bridge{
		surface:      surface,
		pending:      newPendingTable(logger),
		events:       make(chan *Message, 256), // Buffer bursts from the surface
		logger:       logger,
		queryTimeout: queryTimeout,
	}
}

// SetHandler sets the event handler. Must be called before Start.
func (b *Bridge) SetHandler(h Handler) {
	b.handler = h
}

// Start begins the dispatch loop. This should be called once per open
// document in a goroutine.
func (b *Bridge) Start(ctx context.Context) {
	b.wg.Add(1)
	defer b.wg.Done()

	b.logger.Info("bridge dispatch loop starting")

	for {
		select {
		case msg, ok := <-b.events:
			if !ok {
				return
			}
			b.dispatch(ctx, msg)

		case <-ctx.Done():
			b.logger.Info("bridge dispatch loop stopping")
			return
		}
	}
}

// Shutdown gracefully stops the bridge. It stops accepting new messages,
// drains what is queued, and waits for the dispatch loop to exit.
func (b *Bridge) Shutdown(ctx context.Context) error {
	// Mark as shutdown AND close channel atomically while holding lock.
	// This prevents race with Receive() which holds read lock during send.
	b.shutdownMu.Lock()
	b.shutdown = true
	close(b.events)
	b.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("bridge shutdown complete")
	case <-ctx.Done():
		b.logger.Warn("bridge shutdown timeout, queued messages may be lost")
	}
	return nil
}

// Receive parses a raw surface payload and queues it for dispatch. Malformed
// payloads are logged and dropped without mutating any state; the returned
// parse error exists so transports can report it, not so callers can crash.
func (b *Bridge) Receive(data []byte) error {
	msg, err := Parse(data)
	if err != nil {
		b.logger.Warn("dropping malformed surface message", "error", err)
		return err
	}

	// Hold read lock through the entire send operation.
	// This prevents race with Shutdown() which closes the channel.
	b.shutdownMu.RLock()
	defer b.shutdownMu.RUnlock()

	if b.shutdown {
		return nil
	}

	select {
	case b.events <- msg:
	default:
		b.logger.Warn("bridge event queue full, dropping message",
			slog.String("message_type", string(msg.Type)))
	}
	return nil
}

// dispatch routes one validated message. Events may arrive in any order and
// may duplicate; every branch is idempotent.
func (b *Bridge) dispatch(ctx context.Context, msg *Message) {
	switch msg.Type {
	case MessageInit:
		if b.handler != nil {
			b.handler.OnInit(ctx, msg.CurrentPosition, msg.TotalPositions, msg.Generation)
		}
	case MessageProgress:
		if b.handler != nil {
			b.handler.OnProgress(ctx, msg.CurrentPosition, msg.TotalPositions)
		}
	case MessageTOC:
		if b.handler != nil {
			b.handler.OnTOC(ctx, msg.Chapters)
		}
	case MessageTextSelected:
		if b.handler != nil {
			sel := msg.Selection()
			sel.Text = plainText(sel.Text)
			b.handler.OnTextSelected(ctx, sel)
		}
	case MessagePreview:
		if !b.pending.resolve(QueryPreview, msg.Token, QueryResult{Text: plainText(msg.Text)}) {
			b.logger.Debug("preview response with no pending query, dropping")
		}
	case MessageSearchResults:
		results := msg.Results
		for i := range results {
			results[i].Excerpt = plainText(results[i].Excerpt)
		}
		if !b.pending.resolve(QuerySearch, msg.Token, QueryResult{Results: results}) {
			b.logger.Debug("search response with no pending query, dropping")
		}
	case MessageError:
		b.logger.Error("rendering surface fault",
			slog.String("message", msg.Message),
			slog.String("stack", msg.Stack))
		if b.handler != nil {
			b.handler.OnSurfaceError(ctx, msg.Message)
		}
	case MessageDebug:
		b.logger.Debug("surface debug", slog.String("message", msg.Message))
	}
}

// QueryPreview asks the surface for a short excerpt at the current position
// and waits for the correlated response, the timeout, or ctx cancellation.
func (b *Bridge) QueryPreview(ctx context.Context) (string, error) {
	res, err := b.query(ctx, QueryPreview, func(token string) Command {
		return PreviewCommand(token)
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// QuerySearch runs a full-document search on the surface and waits for the
// correlated result list. An empty slice means nothing matched; it is not
// an error.
func (b *Bridge) QuerySearch(ctx context.Context, query string) ([]domain.SearchResult, error) {
	res, err := b.query(ctx, QuerySearch, func(token string) Command {
		return SearchCommand(query, token)
	})
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}

func (b *Bridge) query(ctx context.Context, kind QueryKind, build func(token string) Command) (QueryResult, error) {
	token, ch, err := b.pending.register(kind)
	if err != nil {
		return QueryResult{}, err
	}

	if err := b.surface.Send(build(token)); err != nil {
		b.pending.remove(token)
		return QueryResult{}, domainerrors.Wrapf(err, domainerrors.CodeBridgeRuntime, "send %s query", kind)
	}

	timer := time.NewTimer(b.queryTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res, nil
	case <-timer.C:
		b.pending.remove(token)
		return QueryResult{}, domainerrors.BridgeRuntime(string(kind) + " query timed out")
	case <-ctx.Done():
		b.pending.remove(token)
		return QueryResult{}, ctx.Err()
	}
}

// Navigate jumps the surface to a chapter target or stored position.
func (b *Bridge) Navigate(target string) error {
	return b.surface.Send(NavigateCommand(target))
}

// ApplySettings pushes theme, font size and line height to the surface.
func (b *Bridge) ApplySettings(s domain.ReaderSettings) error {
	return b.surface.Send(SettingsCommand(s))
}

// NextMatch moves the surface to the next search match.
func (b *Bridge) NextMatch() error {
	return b.surface.Send(Command{Action: ActionNextMatch})
}

// PrevMatch moves the surface to the previous search match.
func (b *Bridge) PrevMatch() error {
	return b.surface.Send(Command{Action: ActionPrevMatch})
}

// ApplyHighlight paints a highlight on the surface. Persistence is the
// annotation manager's job; this is the visual half only.
func (b *Bridge) ApplyHighlight(rangeRef, color string) error {
	return b.surface.Send(HighlightCommand(rangeRef, color))
}

// ClearHighlight removes the visual highlight over a range.
func (b *Bridge) ClearHighlight(rangeRef string) error {
	return b.surface.Send(ClearHighlightCommand(rangeRef))
}

// pendingQueries reports how many correlated queries are in flight.
func (b *Bridge) pendingQueries() int {
	return b.pending.pendingCount()
}
