//go:build wireinject
// +build wireinject

package di

import (
	"LiveChart/pkg/config"
	"LiveChart/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideCatalogue,

		// Infrastructure clients
		ProvideTransport,
		ProvideClickHouseClient,
		ProvideSeedCache,
		ProvideSeedSource,

		// Rendering
		ProvideSurface,
		ProvideHub,

		// Use cases
		ProvideChart,
		ProvidePositionPoller,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
