// Package providers contains dependency injection providers for the Pagemark host.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/pagemarkapp/pagemark-host/internal/config"
	"github.com/pagemarkapp/pagemark-host/internal/logger"
)

// ProvideConfig provides the host configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Pagemark host",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Library.DataPath,
	)

	return log, nil
}
