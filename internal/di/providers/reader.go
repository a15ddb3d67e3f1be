package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/pagemarkapp/pagemark-host/internal/config"
	"github.com/pagemarkapp/pagemark-host/internal/logger"
	"github.com/pagemarkapp/pagemark-host/internal/reader"
	"github.com/pagemarkapp/pagemark-host/internal/surface"
)

// ProvideSurfaceOpener provides the SSE-backed rendering surface opener.
func ProvideSurfaceOpener(i do.Injector) (*surface.Opener, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return surface.NewOpener(log.Logger), nil
}

// ReaderServiceHandle wraps the session service with shutdown capability.
type ReaderServiceHandle struct {
	*reader.Service
}

// Shutdown implements do.Shutdownable.
func (h *ReaderServiceHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Service.Shutdown(ctx)
}

// ProvideReaderService provides the reading session service.
func ProvideReaderService(i do.Injector) (*ReaderServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	payloadHandle := do.MustInvoke[*PayloadStoreHandle](i)
	opener := do.MustInvoke[*surface.Opener](i)

	svc := reader.NewService(storeHandle.Store, payloadHandle.Store, opener, cfg.Bridge, log.Logger)

	log.Info("Reader service initialized",
		"query_timeout", cfg.Bridge.QueryTimeout,
		"progress_writes_per_sec", cfg.Bridge.ProgressWritesPerSec,
	)

	return &ReaderServiceHandle{Service: svc}, nil
}
