// Package main provides the entry point for the Pagemark host process.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/pagemarkapp/pagemark-host/internal/di"
	"github.com/pagemarkapp/pagemark-host/internal/di/providers"
	"github.com/pagemarkapp/pagemark-host/internal/logger"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap host: %v\n", err)
		os.Exit(1)
	}

	// Get logger for shutdown messages
	log := do.MustInvoke[*logger.Logger](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down host gracefully...")

	// Shutdown all services in reverse order
	// The DI container handles shutdown order automatically
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	// Sessions flush pending progress before the stores close; the handles
	// are shut down explicitly in case the container missed them.
	if readerHandle, err := do.Invoke[*providers.ReaderServiceHandle](injector); err == nil {
		if err := readerHandle.Shutdown(); err != nil {
			log.Error("Failed to close reading sessions", "error", err)
		}
	}

	if searchHandle, err := do.Invoke[*providers.SearchIndexHandle](injector); err == nil {
		if err := searchHandle.Shutdown(); err != nil {
			log.Error("Failed to close search index", "error", err)
		}
	}

	if payloadHandle, err := do.Invoke[*providers.PayloadStoreHandle](injector); err == nil {
		if err := payloadHandle.Shutdown(); err != nil {
			log.Error("Failed to close payload store", "error", err)
		}
	}

	if storeHandle, err := do.Invoke[*providers.StoreHandle](injector); err == nil {
		if err := storeHandle.Shutdown(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}

	log.Info("Goodnight, book.")
}
