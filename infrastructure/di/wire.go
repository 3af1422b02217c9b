//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"concept-tree/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideConfigWatcher,
	ProvideDomainConfig,
	ProvidePollInterval,
	ProvideMetrics,
	ProvideTracing,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideStores,
	ProvideDocumentStore,
	ProvideArticleStore,
	ProvideDispatcher,
	ProvideEventPublisher,
	ProvideIDGenerator,
	ProvideWorkspace,
	ProvideEngine,
	ProvideArticleService,
	ProvideFlashcard,
	ProvideHub,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
