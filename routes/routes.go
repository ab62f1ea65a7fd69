package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sabercon/portal-gateway/app"
	"github.com/sabercon/portal-gateway/handlers"
	"github.com/sabercon/portal-gateway/models"
)

// SetupRoutes configures all application routes and middleware.
// Policy requirements are declared here, at route registration time; the
// middleware only evaluates them.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "X-New-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Logger)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// Auth endpoints
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", deps.AuthHandler.HandleLogin)
		r.Post("/refresh", deps.AuthHandler.HandleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Post("/logout", deps.AuthHandler.HandleLogout)
			r.Get("/me", deps.AuthHandler.HandleMe)
		})
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Status is public but personalizes when a valid token is presented
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.OptionalAuth)
			r.Get("/status", handlers.StatusHandler)
		})

		// User directory (requires the users.view permission)
		r.Route("/users", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.With(deps.AuthMiddleware.RequirePermission("users.view")).Get("/", userHandler.HandleList)
			r.With(deps.AuthMiddleware.RequirePermission("users.view")).Get("/{id}", userHandler.HandleGet)
		})

		// Admin subtree (system administrators only)
		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireRole(models.RoleSystemAdmin))
			r.Get("/config", handlers.AdminConfigHandler(deps.Config))
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"Route not found"}`))
	})

	return r
}
