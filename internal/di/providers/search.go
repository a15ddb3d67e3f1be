package providers

import (
	"context"
	"os"

	"github.com/samber/do/v2"

	"github.com/pagemarkapp/pagemark-host/internal/config"
	"github.com/pagemarkapp/pagemark-host/internal/logger"
	"github.com/pagemarkapp/pagemark-host/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve library index. An index that
// came up empty while the store has books (fresh index or mapping
// rebuild) is repopulated from the store.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	if err := os.MkdirAll(cfg.SearchPath(), 0o750); err != nil {
		return nil, err
	}

	index, err := search.NewIndex(search.Options{
		DataPath: cfg.SearchPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	count, _ := index.Count()
	if count == 0 {
		if err := index.Reindex(context.Background(), storeHandle.Store); err != nil {
			log.Warn("Search reindex failed", "error", err)
		}
	}

	count, _ = index.Count()
	log.Info("Search index initialized", "books", count)

	return &SearchIndexHandle{Index: index}, nil
}
