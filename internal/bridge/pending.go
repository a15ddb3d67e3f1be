package bridge

import (
	"log/slog"
	"sync"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	"github.com/pagemarkapp/pagemark-host/internal/id"
)

// QueryKind classifies a correlated request/response exchange.
type QueryKind string

const (
	// QueryPreview awaits a preview message.
	QueryPreview QueryKind = "preview"
	// QuerySearch awaits a searchResults message.
	QuerySearch QueryKind = "search"
)

// QueryResult carries the payload of a resolved query.
type QueryResult struct {
	Text    string
	Results []domain.SearchResult
}

type pendingQuery struct {
	token string
	kind  QueryKind
	seq   uint64
	ch    chan QueryResult
}

// pendingTable correlates outbound queries with inbound responses. Each
// request gets a generated token; responses that echo the token resolve
// exactly, responses without one resolve the oldest pending query of their
// kind. Multiple queries of different kinds never corrupt each other.
type pendingTable struct {
	mu      sync.Mutex
	queries map[string]*pendingQuery
	nextSeq uint64
	logger  *slog.Logger
}

func newPendingTable(logger *slog.Logger) *pendingTable {
	return &pendingTable{
		queries: make(map[string]*pendingQuery),
		logger:  logger,
	}
}

// register creates a pending slot and returns its token and result channel.
func (t *pendingTable) register(kind QueryKind) (string, <-chan QueryResult, error) {
	token, err := id.Generate("req")
	if err != nil {
		return "", nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextSeq++
	q := &pendingQuery{
		token: token,
		kind:  kind,
		seq:   t.nextSeq,
		// Buffered so resolve never blocks on a caller that already
		// timed out between resolve and remove.
		ch: make(chan QueryResult, 1),
	}
	t.queries[token] = q
	return token, q.ch, nil
}

// remove discards a pending slot after timeout or cancellation.
func (t *pendingTable) remove(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.queries, token)
}

// resolve delivers a response. A token match wins; otherwise the oldest
// pending query of the response's kind is resolved. Returns false when
// nothing was waiting, in which case the response is dropped.
func (t *pendingTable) resolve(kind QueryKind, token string, result QueryResult) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	var target *pendingQuery
	if token != "" {
		if q, ok := t.queries[token]; ok && q.kind == kind {
			target = q
		}
	}
	if target == nil {
		for _, q := range t.queries {
			if q.kind != kind {
				continue
			}
			if target == nil || q.seq < target.seq {
				target = q
			}
		}
	}
	if target == nil {
		return false
	}

	delete(t.queries, target.token)
	target.ch <- result
	return true
}

// pendingCount reports how many queries are in flight.
func (t *pendingTable) pendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queries)
}
