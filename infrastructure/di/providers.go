package di

import (
	"context"
	"net/http"

	"dealgraph/application/commands"
	commandbus "dealgraph/application/commands/bus"
	commandhandlers "dealgraph/application/commands/handlers"
	"dealgraph/application/queries"
	querybus "dealgraph/application/queries/bus"
	queryhandlers "dealgraph/application/queries/handlers"
	"dealgraph/application/services"
	"dealgraph/domain/events"
	"dealgraph/infrastructure/config"
	"dealgraph/infrastructure/prediction"
	"dealgraph/interfaces/http/rest"
	"dealgraph/interfaces/websocket"
	"dealgraph/pkg/auth"
	pkgerrors "dealgraph/pkg/errors"
	"dealgraph/pkg/metrics"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Hub         *websocket.Hub
	Publisher   *websocket.Publisher
	Graphs      *services.GraphService
	Predictions *services.PredictionService
	CommandBus  *commandbus.CommandBus
	QueryBus    *querybus.QueryBus
	JWTService  *auth.JWTService
	Feed        *websocket.Server
	Handler     http.Handler
}

// GraphStack bundles the hub, the feed publisher and the graph service.
// They are built together because the hub snapshots through the service
// while the service publishes through the hub.
type GraphStack struct {
	Hub       *websocket.Hub
	Publisher *websocket.Publisher
	Graphs    *services.GraphService
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideMetrics creates the Prometheus registry and collectors
func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

// ProvideErrorHandler creates the shared HTTP error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideJWTService creates the token service; a nil service disables auth
func ProvideJWTService(cfg *config.Config) *auth.JWTService {
	return auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, 0)
}

// ProvideGraphStack builds the hub, publisher and graph service as one
// unit. The snapshot closure is resolved lazily so the hub can be
// constructed before the service that feeds it.
func ProvideGraphStack(logger *zap.Logger, m *metrics.Metrics) *GraphStack {
	var graphs *services.GraphService

	hub := websocket.NewHub(func() *events.SnapshotPayload {
		return graphs.SnapshotPayload()
	}, logger, m)

	publisher := websocket.NewPublisher(hub, logger)
	graphs = services.NewGraphService(publisher, logger)

	return &GraphStack{Hub: hub, Publisher: publisher, Graphs: graphs}
}

// ProvidePredictionClient creates the inference client with its breaker
func ProvidePredictionClient(cfg *config.Config, logger *zap.Logger) *prediction.Client {
	return prediction.NewClient(prediction.DefaultConfig(cfg.PredictionURL), logger)
}

// ProvidePredictionService creates the prediction refresh service
func ProvidePredictionService(
	graphs *services.GraphService,
	client *prediction.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *services.PredictionService {
	return services.NewPredictionService(graphs, client, cfg.PredictionInterval, logger)
}

// ProvideCache creates the in-memory query cache
func ProvideCache() querybus.Cache {
	return NewInMemoryCache()
}

// CommandHandlerAdapter adapts a handler function to the bus interface
type CommandHandlerAdapter struct {
	handler func(context.Context, commandbus.Command) error
}

// Handle implements commandbus.CommandHandler
func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd commandbus.Command) error {
	return a.handler(ctx, cmd)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	graphs *services.GraphService,
	predictions *services.PredictionService,
	logger *zap.Logger,
) *commandbus.CommandBus {
	bus := commandbus.NewCommandBus()
	pipeline := commandbus.NewPipeline(commandbus.LoggingMiddleware(logger))

	ingestHandler := commandhandlers.NewIngestDealHandler(graphs, logger)
	bus.Register(commands.IngestDealCommand{}, pipeline.Execute(&CommandHandlerAdapter{
		handler: ingestHandler.Handle,
	}))

	removeCompanyHandler := commandhandlers.NewRemoveCompanyHandler(graphs)
	bus.Register(commands.RemoveCompanyCommand{}, pipeline.Execute(&CommandHandlerAdapter{
		handler: removeCompanyHandler.Handle,
	}))

	removeDealHandler := commandhandlers.NewRemoveDealHandler(graphs)
	bus.Register(commands.RemoveDealCommand{}, pipeline.Execute(&CommandHandlerAdapter{
		handler: removeDealHandler.Handle,
	}))

	loadSnapshotHandler := commandhandlers.NewLoadSnapshotHandler(graphs, logger)
	bus.Register(commands.LoadSnapshotCommand{}, pipeline.Execute(&CommandHandlerAdapter{
		handler: loadSnapshotHandler.Handle,
	}))

	refreshHandler := commandhandlers.NewRefreshPredictionsHandler(predictions)
	bus.Register(commands.RefreshPredictionsCommand{}, pipeline.Execute(&CommandHandlerAdapter{
		handler: refreshHandler.Handle,
	}))

	return bus
}

// ProvideQueryBus creates a query bus with registered handlers. Stats
// are cached briefly; the graph and company reads always hit the store.
func ProvideQueryBus(graphs *services.GraphService, cache querybus.Cache) *querybus.QueryBus {
	bus := querybus.NewQueryBus()
	caching := querybus.NewCachingMiddleware(cache, 2)

	bus.Register(queries.GetGraphQuery{}, queryhandlers.NewGetGraphHandler(graphs))
	bus.Register(queries.GetStatsQuery{}, caching.Wrap(queryhandlers.NewGetStatsHandler(graphs)))
	bus.Register(queries.GetCompanyQuery{}, queryhandlers.NewGetCompanyHandler(graphs))

	return bus
}

// ProvideWebSocketServer creates the feed endpoint handler
func ProvideWebSocketServer(
	hub *websocket.Hub,
	jwtService *auth.JWTService,
	cfg *config.Config,
	logger *zap.Logger,
) *websocket.Server {
	serverConfig := websocket.DefaultServerConfig()
	serverConfig.MaxConnections = cfg.MaxFeedConnections
	return websocket.NewServer(hub, jwtService, serverConfig, logger)
}

// ProvideRouter creates the configured HTTP handler
func ProvideRouter(
	commandBus *commandbus.CommandBus,
	queryBus *querybus.QueryBus,
	graphs *services.GraphService,
	predictions *services.PredictionService,
	feed *websocket.Server,
	jwtService *auth.JWTService,
	m *metrics.Metrics,
	errorHandler *pkgerrors.ErrorHandler,
	cfg *config.Config,
	logger *zap.Logger,
) http.Handler {
	router := rest.NewRouter(
		commandBus, queryBus, graphs, predictions, feed,
		jwtService, m, errorHandler, logger, cfg.CORSOrigins,
	)
	return router.Setup()
}
