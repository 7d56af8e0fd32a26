// Package api provides HTTP handlers for the Lavka management API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okunev/lavka/internal/config"
	"github.com/okunev/lavka/internal/domain"
	"github.com/okunev/lavka/internal/identity"
	"github.com/okunev/lavka/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	repo store.Repository
	cfg  *config.Config
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, cfg *config.Config) *Handler {
	return &Handler{repo: repo, cfg: cfg}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes mounts the full management API under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	authed := identity.Authenticate(h.cfg.JWTSecret)
	adminOnly := identity.RequireRoles(domain.RoleAdmin)
	stockRoles := identity.RequireRoles(domain.RoleAdmin, domain.RoleWarehouseManager)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/auth/login", h.Login)
		r.With(authed).Get("/auth/me", h.Me)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)

			r.With(authed, adminOnly).Post("/", h.CreateProduct)
			r.With(authed, adminOnly).Put("/{id}", h.UpdateProduct)
			r.With(authed, adminOnly).Delete("/{id}", h.DeleteProduct)
			r.With(authed, stockRoles).Patch("/{id}/quantity", h.SetProductQuantity)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Get("/{id}", h.GetCategory)

			r.With(authed, adminOnly).Post("/", h.CreateCategory)
			r.With(authed, adminOnly).Put("/{id}", h.UpdateCategory)
			r.With(authed, adminOnly).Delete("/{id}", h.DeleteCategory)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authed, adminOnly)
			r.Post("/", h.CreateUser)
			r.Delete("/{email}", h.DeleteUser)
			r.Patch("/{email}/password", h.UpdateUserPassword)
		})
	})
}

// Health reports service liveness including database connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		Error(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
