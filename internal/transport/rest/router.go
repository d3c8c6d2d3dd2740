package rest

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/tianting/celestial-court/internal/auth"
	"github.com/tianting/celestial-court/internal/deity"
	"github.com/tianting/celestial-court/internal/department"
	"github.com/tianting/celestial-court/internal/permission"
	"github.com/tianting/celestial-court/internal/rank"
	"github.com/tianting/celestial-court/internal/transport/middleware"
	"github.com/tianting/celestial-court/internal/transport/swagger"
)

type Handlers struct {
	Auth       *auth.Handler
	Guard      *auth.Guard
	Resolver   *permission.Resolver
	Rank       *rank.Handler
	Permission *permission.Handler
	Department *department.Handler
	Deity      *deity.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, allowedOrigins []string, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORSHandler(allowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/users/me", currentUserHandler(h.Resolver))

			pr.Get("/ranks", h.Rank.ListRanks)

			pr.Route("/permissions", func(pmr chi.Router) {
				pmr.Get("/", h.Permission.ListPermissions)
				pmr.Get("/menus", h.Permission.Menus)
				pmr.Get("/menus/{menuCode}/operations", h.Permission.Operations)
				pmr.With(h.Guard.Require(auth.PermPermissionEdit)).
					Put("/{id}", h.Permission.UpdatePermission)
			})

			pr.Route("/roles", func(rr chi.Router) {
				rr.Get("/", h.Permission.ListRoles)
				rr.With(h.Guard.Require(auth.PermRoleEdit)).
					Put("/{id}", h.Permission.UpdateRole)
			})

			pr.Route("/departments", func(dr chi.Router) {
				dr.Get("/", h.Department.List)
				dr.Get("/{id}/path", h.Department.Path)
				dr.With(h.Guard.Require(auth.PermDepartmentCreate)).
					Post("/", h.Department.Create)
				dr.With(h.Guard.Require(auth.PermDepartmentEdit)).
					Put("/{id}", h.Department.Update)
				dr.With(h.Guard.Require(auth.PermDepartmentEdit)).
					Put("/{id}/leader", h.Department.SetLeader)
				dr.With(h.Guard.Require(auth.PermDepartmentStatus)).
					Put("/{id}/status", h.Department.SetStatus)
			})

			pr.Route("/deities", func(gr chi.Router) {
				gr.Get("/", h.Deity.List)
				gr.Get("/{id}", h.Deity.Get)
				gr.Get("/{id}/history", h.Deity.History)
				gr.With(h.Guard.Require(auth.PermDeityCreate)).
					Post("/", h.Deity.Create)
				gr.With(h.Guard.Require(auth.PermDeityEdit)).
					Put("/{id}", h.Deity.Update)
				gr.With(h.Guard.Require(auth.PermDeityStatus)).
					Put("/{id}/status", h.Deity.ChangeStatus)
			})
		})
	})
}

// currentUserHandler returns the principal plus the menus its roles grant, so
// the UI can render navigation from the same snapshot the guard enforces.
func currentUserHandler(resolver *permission.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"user":  user,
			"menus": resolver.MenusFor(user.RoleIDs),
		})
	}
}
