//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"braindump/application/ports"
	"braindump/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideEngineConfig,
	ProvidePersistence,
	ProvideRegistry,
	ProvideObserver,
	ProvideWorkspace,
	ProvideGraphStore,
	ProvideHistory,
	ProvideReconciler,
	ProvideMutations,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates the fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config, enricher ports.Enricher) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
