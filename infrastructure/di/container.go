package di

import (
	"neorest/application/commands/bus"
	"neorest/application/ports"
	querybus "neorest/application/queries/bus"
	"neorest/application/transaction"
	"neorest/domain/core/classes"
	"neorest/infrastructure/config"
	"neorest/infrastructure/persistence/dynamodb"
	"neorest/infrastructure/schema"
	"neorest/interfaces/http/rest"
	"neorest/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Engine     ports.GraphEngine
	Scope      *transaction.Boundary
	Registry   *classes.Registry
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Collector  *observability.Collector
	Loader     *schema.Loader
	Relay      *dynamodb.Relay
	Router     *rest.Router
}
