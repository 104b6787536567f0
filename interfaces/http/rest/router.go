package rest

import (
	"net/http"

	"neorest/application/commands/bus"
	querybus "neorest/application/queries/bus"
	"neorest/interfaces/http/rest/handlers"
	"neorest/interfaces/http/rest/middleware"
	"neorest/pkg/auth"
	apperrors "neorest/pkg/errors"
	"neorest/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options configures the HTTP surface
type Options struct {
	BaseURI        string
	EnableCORS     bool
	AllowedOrigins []string
	Debug          bool
}

// AdminGate protects POST /neo. A nil Validator disables the endpoint.
type AdminGate struct {
	Validator *auth.JWTValidator
	Limiter   auth.RateLimiter
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	collector  *observability.Collector
	admin      AdminGate
	options    Options
	logger     *zap.Logger
}

// NewRouter creates a new router instance. collector may be nil.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	collector *observability.Collector,
	admin AdminGate,
	options Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		collector:  collector,
		admin:      admin,
		options:    options,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	errorHandler := apperrors.NewErrorHandler(rt.logger, rt.options.Debug)
	uris := handlers.NewURIs(rt.options.BaseURI)
	nodeHandler := handlers.NewNodeHandler(rt.commandBus, rt.queryBus, uris, errorHandler, rt.logger)
	graphHandler := handlers.NewGraphHandler(rt.commandBus, rt.queryBus, uris, errorHandler, rt.logger)

	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.collector != nil {
		router.Use(rt.collector.HTTPMiddleware)
	}

	if rt.options.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.options.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match", "X-Request-ID"},
			ExposedHeaders:   []string{"ETag", "Location", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.Get("/health", graphHandler.Health)
	router.Get("/ready", graphHandler.Ready)
	if rt.collector != nil {
		router.Handle("/metrics", rt.collector.Handler())
	}

	router.Get("/neo", graphHandler.GetStatus)
	router.With(rt.adminGate(errorHandler)).Post("/neo", graphHandler.DefineClasses)

	router.Get("/relationships/{id}", graphHandler.GetRelationship)

	router.Route("/nodes/{class}", func(r chi.Router) {
		r.Get("/", nodeHandler.ListNodes)
		r.Post("/", nodeHandler.CreateNode)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", nodeHandler.GetNode)
			r.Put("/", nodeHandler.UpdateNode)
			r.Delete("/", nodeHandler.DeleteNode)

			r.Get("/traverse", nodeHandler.Traverse)
			r.Get("/{prop}", nodeHandler.GetProperty)
			r.Put("/{prop}", nodeHandler.SetProperty)
			r.Post("/{prop}", nodeHandler.Link)
		})
	})

	return router
}

func (rt *Router) adminGate(errorHandler *apperrors.ErrorHandler) func(http.Handler) http.Handler {
	if rt.admin.Validator == nil {
		return middleware.Disabled(errorHandler)
	}
	limiter := rt.admin.Limiter
	if limiter == nil {
		limiter = auth.NewIPRateLimiter(10)
	}
	return middleware.RequireAdmin(rt.admin.Validator, limiter, errorHandler, rt.logger)
}
