package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/pagemarkapp/pagemark-host/internal/config"
	"github.com/pagemarkapp/pagemark-host/internal/logger"
	"github.com/pagemarkapp/pagemark-host/internal/store/blob"
	"github.com/pagemarkapp/pagemark-host/internal/store/sqlite"
)

// StoreHandle wraps the relational store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the sqlite store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Library.DataPath, 0o750); err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.DatabasePath(), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.DatabasePath())

	return &StoreHandle{Store: db}, nil
}

// PayloadStoreHandle wraps the badger payload store with shutdown capability.
type PayloadStoreHandle struct {
	*blob.Store
}

// Shutdown implements do.Shutdownable.
func (h *PayloadStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvidePayloadStore provides the badger-backed payload store.
func ProvidePayloadStore(i do.Injector) (*PayloadStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	payloads, err := blob.Open(cfg.PayloadPath(), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Payload store initialized", "path", cfg.PayloadPath())

	return &PayloadStoreHandle{Store: payloads}, nil
}
