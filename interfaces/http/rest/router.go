// Package rest wires the HTTP surface of the document server.
package rest

import (
	"context"
	"net/http"
	"time"

	"concept-tree/application/ports"
	"concept-tree/interfaces/http/rest/handlers"
	"concept-tree/interfaces/http/rest/middleware"
	appErrors "concept-tree/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// MetricsProvider exposes request metrics and the scrape endpoint
type MetricsProvider interface {
	middleware.HTTPObserver
	Handler() http.Handler
}

// ReadinessCheck reports whether the backing stores can serve requests
type ReadinessCheck func(ctx context.Context) error

// RouterConfig holds the optional parts of the router
type RouterConfig struct {
	EnableCORS     bool
	AllowedOrigins []string
	Debug          bool
}

// Router creates and configures the HTTP router
type Router struct {
	documents ports.GraphDocumentStore
	articles  ports.ArticleStore
	publisher ports.EventPublisher
	streamer  handlers.Streamer
	metrics   MetricsProvider
	ready     ReadinessCheck
	config    RouterConfig
	logger    *zap.Logger
}

// NewRouter creates a new router. publisher, streamer, metrics and ready may be nil.
func NewRouter(
	documents ports.GraphDocumentStore,
	articles ports.ArticleStore,
	publisher ports.EventPublisher,
	streamer handlers.Streamer,
	metrics MetricsProvider,
	ready ReadinessCheck,
	config RouterConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		documents: documents,
		articles:  articles,
		publisher: publisher,
		streamer:  streamer,
		metrics:   metrics,
		ready:     ready,
		config:    config,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errs := appErrors.NewErrorHandler(rt.logger, rt.config.Debug)
	validate := validator.New()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errs.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if rt.config.EnableCORS {
		origins := rt.config.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000", "http://localhost:5173"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/graphs", func(r chi.Router) {
			graphHandler := handlers.NewGraphHandler(rt.documents, rt.streamer, validate, errs, rt.logger)
			r.Get("/*", graphHandler.Get)
			r.Put("/*", graphHandler.Put)
		})

		r.Route("/articles", func(r chi.Router) {
			articleHandler := handlers.NewArticleHandler(rt.articles, rt.publisher, validate, errs, rt.logger)
			r.Post("/", articleHandler.Create)
			r.Get("/{articleID}", articleHandler.Get)
			r.Patch("/{articleID}", articleHandler.Patch)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// StoreReadiness treats a reachable store as ready, whether or not the document exists yet
func StoreReadiness(store ports.GraphDocumentStore, key string) ReadinessCheck {
	return func(ctx context.Context) error {
		_, err := store.Get(ctx, key)
		if err != nil && !appErrors.IsNotFound(err) {
			return err
		}
		return nil
	}
}
