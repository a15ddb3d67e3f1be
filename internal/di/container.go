// Package di provides dependency injection configuration for the Pagemark host.
package di

import (
	"github.com/samber/do/v2"

	"github.com/pagemarkapp/pagemark-host/internal/config"
	"github.com/pagemarkapp/pagemark-host/internal/di/providers"
	"github.com/pagemarkapp/pagemark-host/internal/library"
	"github.com/pagemarkapp/pagemark-host/internal/logger"
	"github.com/pagemarkapp/pagemark-host/internal/surface"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvidePayloadStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Library layer
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideInboxWatcher)

	// Reading sessions
	do.Provide(injector, providers.ProvideSurfaceOpener)
	do.Provide(injector, providers.ProvideReaderService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle
// management. This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.PayloadStoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*library.Service](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.InboxWatcherHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*surface.Opener](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.ReaderServiceHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
