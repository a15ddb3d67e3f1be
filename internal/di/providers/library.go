package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/pagemarkapp/pagemark-host/internal/config"
	"github.com/pagemarkapp/pagemark-host/internal/library"
	"github.com/pagemarkapp/pagemark-host/internal/logger"
)

// ProvideLibraryService provides the book import/catalog service.
func ProvideLibraryService(i do.Injector) (*library.Service, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	payloadHandle := do.MustInvoke[*PayloadStoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return library.NewService(storeHandle.Store, payloadHandle.Store, indexHandle.Index, log.Logger), nil
}

// InboxWatcherHandle wraps the inbox watcher with shutdown capability.
// Watcher is nil when no inbox path is configured.
type InboxWatcherHandle struct {
	*library.InboxWatcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *InboxWatcherHandle) Shutdown() error {
	if h.InboxWatcher == nil {
		return nil
	}
	h.cancel()
	return h.Close()
}

// ProvideInboxWatcher provides the drop-folder watcher.
func ProvideInboxWatcher(i do.Injector) (*InboxWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Library.InboxPath == "" {
		log.Info("Inbox watcher disabled, no inbox path configured")
		return &InboxWatcherHandle{}, nil
	}

	importer := do.MustInvoke[*library.Service](i)

	w, err := library.NewInboxWatcher(importer, cfg.Library.InboxPath, log.Logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)

	log.Info("Inbox watcher started", "path", cfg.Library.InboxPath)

	return &InboxWatcherHandle{InboxWatcher: w, cancel: cancel}, nil
}
