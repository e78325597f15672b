package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tokopos/api/internal/config"
	"github.com/tokopos/api/internal/database"
	"github.com/tokopos/api/internal/enum"
	"github.com/tokopos/api/internal/handler"
	mw "github.com/tokopos/api/internal/middleware"
	"github.com/tokopos/api/internal/service"
	"github.com/tokopos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, tenant scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/tenants/{tid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Tenant administration (super-admin only)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleSuperAdmin))
			tenantHandler := handler.NewTenantHandler(queries)
			r.Route("/tenants", tenantHandler.RegisterRoutes)
		})

		// Tenant-scoped routes
		r.Route("/tenants/{tid}", func(r chi.Router) {
			r.Use(mw.RequireTenant)

			// Users (admin only)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleSuperAdmin, enum.UserRoleAdmin))
				userHandler := handler.NewUserHandler(queries)
				r.Route("/users", userHandler.RegisterRoutes)
			})

			// Menu
			menuHandler := handler.NewMenuHandler(queries)
			r.Route("/menu", menuHandler.RegisterRoutes)

			// Token counters
			counterHandler := handler.NewCounterHandler(queries)
			r.Route("/counters", counterHandler.RegisterRoutes)

			// Orders
			newOrderStore := func(db database.DBTX) service.OrderStore {
				return database.New(db)
			}
			orderService := service.NewOrderService(pool, queries, newOrderStore)
			orderHandler := handler.NewOrderHandler(orderService, hub)
			r.Route("/orders", orderHandler.RegisterRoutes)
		})
	})

	return r
}
