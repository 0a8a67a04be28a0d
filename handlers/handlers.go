package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/llm-gateway/app"
	"github.com/upb/llm-gateway/middleware"
	"github.com/upb/llm-gateway/utils"
)

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Client-ID", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthHandler := NewHealthHandler(deps.State, deps.Logger)
	providerHandler := NewProviderHandler(deps.State, deps.Logger)
	configHandler := NewConfigHandler(deps.State, deps.Logger)
	completionHandler := NewCompletionHandler(deps.State, deps.LogStore, deps.Logger)
	logHandler := NewLogHandler(deps.LogStore, deps.Logger)
	rateLimit := middleware.NewRateLimitMiddleware(deps.Limiter, deps.LogStore, deps.Logger)

	// Health check endpoint
	r.Get("/health", healthHandler.HandleHealth)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", healthHandler.HandleStatus)
		r.Get("/providers", providerHandler.HandleListProviders)
		r.Get("/models", providerHandler.HandleListModels)
		r.Get("/config", configHandler.HandleGetConfig)
		r.Put("/config", configHandler.HandleUpdateConfig)
		r.Get("/logs", logHandler.HandleListLogs)

		// Completion endpoints sit behind the rate limiter; discovery and
		// admin endpoints do not consume tokens.
		r.Group(func(r chi.Router) {
			r.Use(rateLimit.Limit)
			r.Use(chimiddleware.Timeout(5 * time.Minute))
			r.Post("/chat/completions", completionHandler.HandleChatCompletion)
			r.Post("/task/completions", completionHandler.HandleTaskCompletion)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
