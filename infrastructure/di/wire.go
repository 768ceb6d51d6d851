//go:build wireinject
// +build wireinject

// Package di assembles the feed service object graph.
package di

import (
	"github.com/google/wire"

	"dealgraph/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideErrorHandler,
	ProvideJWTService,
	ProvideGraphStack,
	wire.FieldsOf(new(*GraphStack), "Hub", "Publisher", "Graphs"),
	ProvidePredictionClient,
	ProvidePredictionService,
	ProvideCache,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideWebSocketServer,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
