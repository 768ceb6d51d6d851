// Package rest wires the feed service's HTTP surface: the JSON API,
// the websocket feed endpoint and the operational endpoints.
package rest

import (
	"net/http"

	commandbus "dealgraph/application/commands/bus"
	querybus "dealgraph/application/queries/bus"
	"dealgraph/application/services"
	"dealgraph/interfaces/http/rest/handlers"
	"dealgraph/interfaces/http/rest/middleware"
	"dealgraph/interfaces/websocket"
	"dealgraph/pkg/auth"
	pkgerrors "dealgraph/pkg/errors"
	"dealgraph/pkg/metrics"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus  *commandbus.CommandBus
	queryBus    *querybus.QueryBus
	graphs      *services.GraphService
	predictions *services.PredictionService
	feed        *websocket.Server
	jwtService  *auth.JWTService
	metrics     *metrics.Metrics
	errors      *pkgerrors.ErrorHandler
	logger      *zap.Logger
	corsOrigins []string
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *commandbus.CommandBus,
	queryBus *querybus.QueryBus,
	graphs *services.GraphService,
	predictions *services.PredictionService,
	feed *websocket.Server,
	jwtService *auth.JWTService,
	m *metrics.Metrics,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
	corsOrigins []string,
) *Router {
	return &Router{
		commandBus:  commandBus,
		queryBus:    queryBus,
		graphs:      graphs,
		predictions: predictions,
		feed:        feed,
		jwtService:  jwtService,
		metrics:     m,
		errors:      errors,
		logger:      logger,
		corsOrigins: corsOrigins,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Operational endpoints
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())

	// Live update feed. The websocket handler does its own token check
	// so that browser clients can pass credentials via query string.
	router.Get("/feed", rt.feed.HandleFeed)

	// API routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.jwtService, rt.logger))

		graphHandler := handlers.NewGraphHandler(rt.commandBus, rt.queryBus, rt.errors, rt.logger)
		exportHandler := handlers.NewExportHandler(rt.graphs, rt.errors, rt.logger)

		r.Route("/graph", func(r chi.Router) {
			r.Get("/", graphHandler.GetGraph)
			r.Post("/", graphHandler.LoadSnapshot)
			r.Get("/stats", graphHandler.GetStats)
			r.Get("/export", exportHandler.Export)
		})

		r.Route("/companies", func(r chi.Router) {
			r.Get("/{companyID}", graphHandler.GetCompany)
			r.Delete("/{companyID}", graphHandler.RemoveCompany)
		})

		r.Route("/deals", func(r chi.Router) {
			r.Post("/", graphHandler.IngestDeal)
			r.Delete("/{dealID}", graphHandler.RemoveDeal)
		})

		r.Post("/predictions/refresh", graphHandler.RefreshPredictions)

		// Scenario evaluation calls the inference service, so it gets a
		// tighter global throttle than the rest of the API.
		simulationHandler := handlers.NewSimulationHandler(rt.predictions, rt.errors, rt.logger)
		r.With(middleware.Throttle(2, 5)).Post("/simulate", simulationHandler.Simulate)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports ready once the graph service is serving
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
