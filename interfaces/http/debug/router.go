// Package debug exposes the engine over HTTP for local development and
// inspection: the full graph view, mutation endpoints, undo/redo, the
// history report and Prometheus metrics.
package debug

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"braindump/application/services"
)

// Router creates and configures the debug HTTP router
type Router struct {
	store      *services.GraphStore
	history    *services.HistoryManager
	mutations  *services.MutationService
	registry   *prometheus.Registry
	logger     *zap.Logger
	enableCORS bool
}

// NewRouter creates a new router instance
func NewRouter(
	store *services.GraphStore,
	history *services.HistoryManager,
	mutations *services.MutationService,
	registry *prometheus.Registry,
	logger *zap.Logger,
	enableCORS bool,
) *Router {
	return &Router{
		store:      store,
		history:    history,
		mutations:  mutations,
		registry:   registry,
		logger:     logger,
		enableCORS: enableCORS,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Throttle(100))
	router.Use(requestLogger(rt.logger))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)

	handler := newEngineHandler(rt.store, rt.history, rt.mutations, rt.logger)
	router.Get("/graph", handler.GetGraph)

	router.Route("/workspace", func(r chi.Router) {
		r.Get("/", handler.GetWorkspace)
		r.Put("/", handler.RenameWorkspace)
		r.Put("/viewport", handler.SaveViewport)
	})

	router.Route("/nodes", func(r chi.Router) {
		r.Post("/", handler.CreateNode)
		r.Post("/with-edge", handler.CreateNodeWithEdge)
		r.Post("/merge", handler.MergeNodes)
		r.Post("/duplicate", handler.DuplicateNodes)
		r.Put("/{nodeID}/text", handler.UpdateNodeText)
		r.Put("/{nodeID}/position", handler.UpdateNodePosition)
		r.Delete("/{nodeID}", handler.DeleteNode)
	})

	router.Route("/edges", func(r chi.Router) {
		r.Post("/", handler.CreateEdge)
		r.Delete("/{edgeID}", handler.DeleteEdge)
	})

	router.Route("/history", func(r chi.Router) {
		r.Get("/", handler.GetHistory)
		r.Post("/undo", handler.Undo)
		r.Post("/redo", handler.Redo)
	})

	router.Get("/validate", handler.Validate)

	if rt.registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	}

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
