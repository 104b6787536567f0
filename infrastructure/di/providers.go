package di

import (
	"context"
	"fmt"
	"time"

	"neorest/application/commands/bus"
	commandhandlers "neorest/application/commands/handlers"
	"neorest/application/ports"
	querybus "neorest/application/queries/bus"
	queryhandlers "neorest/application/queries/handlers"
	"neorest/application/services"
	"neorest/application/transaction"
	"neorest/domain/core/classes"
	"neorest/infrastructure/config"
	"neorest/infrastructure/messaging"
	"neorest/infrastructure/messaging/eventbridge"
	"neorest/infrastructure/persistence/dynamodb"
	"neorest/infrastructure/persistence/memory"
	"neorest/infrastructure/persistence/neo4j"
	"neorest/infrastructure/schema"
	"neorest/interfaces/http/rest"
	"neorest/pkg/auth"
	"neorest/pkg/extensions"
	"neorest/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

const serviceName = "neorest"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() || cfg.IsLambda {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zapCfg.Level = level
	}
	return zapCfg.Build(zap.Fields(zap.String("service", serviceName)))
}

// ProvideAWSConfig creates AWS configuration. Clients built from it connect lazily,
// so a local run without credentials only fails when an AWS feature is enabled.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideGraphEngine opens the configured engine. The cleanup closes it.
func ProvideGraphEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.GraphEngine, func(), error) {
	var engine ports.GraphEngine
	switch cfg.GraphEngine {
	case config.EngineNeo4j:
		e, err := neo4j.NewEngine(ctx, neo4j.Config{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		}, neo4j.DefaultBreakerConfig(), logger)
		if err != nil {
			return nil, nil, err
		}
		engine = e
	default:
		engine = memory.NewEngine(logger)
	}
	logger.Info("Graph engine ready", zap.String("engine", cfg.GraphEngine))

	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := engine.Close(closeCtx); err != nil {
			logger.Error("Failed to close graph engine", zap.Error(err))
		}
	}
	return engine, cleanup, nil
}

// ProvideJournal creates the DynamoDB event journal, or nil when EVENT_TABLE is unset
func ProvideJournal(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.Journal {
	if cfg.EventTable == "" {
		return nil
	}
	return dynamodb.NewJournal(client, cfg.EventTable, cfg.EventTTL, logger)
}

// Downstream is where events finally go, after the journal when there is one
type Downstream struct {
	ports.EventPublisher
}

// ProvideDownstream publishes to EventBridge when a bus is configured and to the log always.
func ProvideDownstream(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) Downstream {
	logPublisher := messaging.NewLogPublisher(logger)
	if cfg.EventBusName == "" {
		return Downstream{logPublisher}
	}
	return Downstream{messaging.MultiPublisher{
		logPublisher,
		eventbridge.NewEventBridgePublisher(client, cfg.EventBusName, logger),
	}}
}

// ProvideEventPublisher is the publisher handed to the transaction boundary.
// With a journal, committed events are recorded there and the relay forwards them.
func ProvideEventPublisher(journal *dynamodb.Journal, downstream Downstream) ports.EventPublisher {
	if journal != nil {
		return journal
	}
	return downstream.EventPublisher
}

// ProvideRelay creates the journal relay, or nil without a journal
func ProvideRelay(journal *dynamodb.Journal, downstream Downstream, cfg *config.Config, logger *zap.Logger) *dynamodb.Relay {
	if journal == nil {
		return nil
	}
	return dynamodb.NewRelay(journal, downstream.EventPublisher, cfg.RelayInterval, logger)
}

// ProvideCollector creates the Prometheus collector, or nil when metrics are off
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector(serviceName)
}

// ProvideMetricsRecorder fans transaction outcomes out to Prometheus and,
// when running in AWS, CloudWatch.
func ProvideMetricsRecorder(client *awscloudwatch.Client, collector *observability.Collector, cfg *config.Config, logger *zap.Logger) ports.MetricsRecorder {
	var recorders observability.Recorders
	if collector != nil {
		recorders = append(recorders, collector)
	}
	if cfg.EnableMetrics && (cfg.IsLambda || cfg.IsProduction()) {
		namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
		recorders = append(recorders, observability.NewMetrics(namespace, client, logger))
	}
	if len(recorders) == 0 {
		return nil
	}
	return recorders
}

// ProvideTracer selects the transaction tracer. The cleanup flushes pending spans.
func ProvideTracer(ctx context.Context, cfg *config.Config) (transaction.Tracer, func(), error) {
	switch cfg.TracingBackend {
	case config.TracingXRay:
		return observability.NewTracer(serviceName), func() {}, nil
	case config.TracingOTLP:
		tp, err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName: serviceName,
			Environment: cfg.Environment,
			Endpoint:    cfg.OTLPEndpoint,
			SampleRate:  cfg.TraceSampleRate,
		})
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}
		return tp, cleanup, nil
	default:
		return nil, func() {}, nil
	}
}

// ProvideBoundary creates the transaction boundary shared by both buses
func ProvideBoundary(engine ports.GraphEngine, publisher ports.EventPublisher, metrics ports.MetricsRecorder, tracer transaction.Tracer, logger *zap.Logger) *transaction.Boundary {
	return transaction.NewBoundary(engine, publisher, metrics, tracer, logger)
}

// ProvideHookManager creates the hook manager
func ProvideHookManager() *extensions.HookManager {
	return extensions.NewHookManager()
}

// ProvideRegistry creates the class registry
func ProvideRegistry(hooks *extensions.HookManager) *classes.Registry {
	return classes.NewRegistry(hooks)
}

// ProvideMetaGraph registers the bootstrap classes and starts mirroring new ones
func ProvideMetaGraph(ctx context.Context, scope *transaction.Boundary, registry *classes.Registry, hooks *extensions.HookManager, logger *zap.Logger) (*services.MetaGraph, error) {
	return services.NewMetaGraph(ctx, scope, registry, hooks, logger)
}

// ProvideResources depends on the meta graph so it exists before any class is defined
func ProvideResources(scope *transaction.Boundary, registry *classes.Registry, _ *services.MetaGraph) *services.Resources {
	return services.NewResources(scope, registry)
}

// ProvideSchemaParser creates the HCL class declaration parser
func ProvideSchemaParser() ports.SchemaParser {
	return schema.NewHCLParser()
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	scope *transaction.Boundary,
	resources *services.Resources,
	registry *classes.Registry,
	parser ports.SchemaParser,
	hooks *extensions.HookManager,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.TransactionMiddleware(scope),
	)
	err := commandhandlers.Register(commandBus,
		commandhandlers.NewNodeHandlers(resources, logger),
		commandhandlers.NewSetPropertyHandler(resources),
		commandhandlers.NewLinkNodesHandler(resources, logger),
		commandhandlers.NewDefineClassesHandler(registry, parser, hooks, logger),
	)
	if err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(scope *transaction.Boundary, resources *services.Resources, collector *observability.Collector, logger *zap.Logger) (*querybus.QueryBus, error) {
	middlewares := []querybus.Middleware{querybus.LoggingMiddleware(logger)}
	if collector != nil {
		middlewares = append(middlewares, querybus.MetricsMiddleware(collector))
	}
	middlewares = append(middlewares, querybus.TransactionMiddleware(scope))

	queryBus := querybus.NewQueryBus(middlewares...)
	err := queryhandlers.Register(queryBus,
		queryhandlers.NewNodeQueryHandlers(resources),
		queryhandlers.NewGraphQueryHandlers(resources),
	)
	if err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideSchemaLoader creates the loader that feeds schema files through the command bus
func ProvideSchemaLoader(commandBus *bus.CommandBus, logger *zap.Logger) *schema.Loader {
	return schema.NewLoader(commandBus, logger)
}

// ProvideAdminGate builds the POST /neo guard. Without ALLOW_EXTENSIONS the
// gate has no validator and the endpoint answers 403.
func ProvideAdminGate(client *awsdynamodb.Client, cfg *config.Config) (rest.AdminGate, error) {
	if !cfg.AllowExtensions {
		return rest.AdminGate{}, nil
	}
	validator, err := auth.NewJWTValidator(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return rest.AdminGate{}, err
	}

	var limiter auth.RateLimiter
	if cfg.RateLimitTable != "" {
		limiter = auth.NewDistributedRateLimiter(client, cfg.RateLimitTable, cfg.AdminRateLimit, time.Minute, "ADMIN")
	} else {
		limiter = auth.NewIPRateLimiter(cfg.AdminRateLimit)
	}
	return rest.AdminGate{Validator: validator, Limiter: limiter}, nil
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	collector *observability.Collector,
	gate rest.AdminGate,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(commandBus, queryBus, collector, gate, rest.Options{
		BaseURI:        cfg.BaseURI,
		EnableCORS:     cfg.EnableCORS,
		AllowedOrigins: cfg.AllowedOrigins,
		Debug:          cfg.IsDevelopment(),
	}, logger)
}
