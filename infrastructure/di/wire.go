//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"neorest/infrastructure/config"

	"github.com/google/wire"
)

// AWSSet builds the SDK clients from one shared aws.Config.
var AWSSet = wire.NewSet(
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
)

// GraphSet is the engine, the transaction boundary and everything the boundary reports to.
var GraphSet = wire.NewSet(
	ProvideGraphEngine,
	ProvideJournal,
	ProvideDownstream,
	ProvideEventPublisher,
	ProvideRelay,
	ProvideCollector,
	ProvideMetricsRecorder,
	ProvideTracer,
	ProvideBoundary,
)

// SchemaSet covers class registration and the meta graph mirroring it.
var SchemaSet = wire.NewSet(
	ProvideHookManager,
	ProvideRegistry,
	ProvideMetaGraph,
	ProvideResources,
	ProvideSchemaParser,
	ProvideSchemaLoader,
)

var HTTPSet = wire.NewSet(
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideAdminGate,
	ProvideRouter,
)

func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(ProvideLogger, AWSSet, GraphSet, SchemaSet, HTTPSet, wire.Struct(new(Container), "*"))
	return nil, nil, nil
}
