//go:build wireinject
// +build wireinject

package main

import (
	"sic_device_agent/internal/api"
	"sic_device_agent/internal/app"
	"sic_device_agent/internal/config"
	"sic_device_agent/internal/consent"
	"sic_device_agent/internal/delivery"
	"sic_device_agent/internal/jobs"
	"sic_device_agent/internal/location"
	"sic_device_agent/internal/messaging"
	"sic_device_agent/internal/permission"
	"sic_device_agent/internal/platform/database"
	"sic_device_agent/internal/platform/logger"
	"sic_device_agent/internal/registration"
	"sic_device_agent/internal/store"
	"sic_device_agent/internal/ui"

	"github.com/google/wire"
)

// initializeAgent is the main Wire injector.
func initializeAgent(cfg *config.Config) (*app.Agent, func(), error) {
	wire.Build(
		// Platform Layer
		logger.New,
		database.NewSQLite,

		// Store
		store.NewGORMRepository,
		store.NewService,

		// Capabilities
		ui.NewTerminal,
		wire.Bind(new(permission.Prompter), new(*ui.Terminal)),
		wire.Bind(new(consent.Prompter), new(*ui.Terminal)),
		permission.NewService,
		messaging.NewFromConfig,
		location.NewFromConfig,
		api.New,

		// Workflow
		consent.NewFlow,
		wire.Bind(new(consent.PermissionRequester), new(permission.Service)),
		wire.Bind(new(consent.ConsentWriter), new(*store.Service)),
		registration.NewService,
		wire.Bind(new(registration.TokenSource), new(messaging.Service)),
		wire.Bind(new(registration.Registrar), new(*api.Client)),
		wire.Bind(new(registration.ProfileSaver), new(*store.Service)),
		wire.Bind(new(registration.ConsentFlow), new(*consent.Flow)),
		delivery.NewHandler,
		wire.Bind(new(delivery.ConsentReader), new(*store.Service)),
		wire.Bind(new(delivery.PermissionChecker), new(permission.Service)),
		wire.Bind(new(delivery.FixProvider), new(location.Provider)),
		wire.Bind(new(delivery.Reporter), new(*api.Client)),
		jobs.NewTokenRefreshJob,
		wire.Bind(new(jobs.TokenSource), new(messaging.Service)),

		// Application Layer
		app.NewAgent,
	)
	return nil, nil, nil
}
