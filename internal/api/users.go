package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/okunev/lavka/internal/domain"
	"github.com/okunev/lavka/internal/identity"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Login exchanges staff credentials for a JWT.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.repo.GetUserByEmail(r.Context(), email)
	if err != nil {
		slog.Error("failed to look up user for login", "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}
	// Same answer whether the account is missing or the password is wrong.
	if user == nil {
		Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := identity.IssueToken(h.cfg.JWTSecret, user)
	if err != nil {
		slog.Error("failed to issue staff token", "error", err, "email", email)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	slog.Info("staff login", "email", email, "role", user.Role)
	JSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// Me returns the authenticated staff member's claims.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := identity.StaffClaimsFromContext(r.Context())
	if claims == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"email": claims.Email,
		"name":  claims.Name,
		"role":  claims.Role,
	})
}

// CreateUser registers a staff account.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string      `json:"email"`
		Name     string      `json:"name"`
		Password string      `json:"password"`
		Role     domain.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		Error(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		Error(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleWarehouseManager {
		Error(w, http.StatusBadRequest, "unknown role")
		return
	}

	existing, err := h.repo.GetUserByEmail(r.Context(), email)
	if err != nil {
		slog.Error("failed to check existing user", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	if existing != nil {
		Error(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cfg.BcryptCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user := &domain.User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         req.Role,
	}
	if err := h.repo.CreateUser(r.Context(), user); err != nil {
		slog.Error("failed to create user", "error", err, "email", email)
		Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	slog.Info("staff user created", "email", email, "role", user.Role)
	JSON(w, http.StatusCreated, user)
}

// DeleteUser removes a staff account by email.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "email")))
	if email == "" {
		Error(w, http.StatusBadRequest, "email is required")
		return
	}
	user, err := h.repo.DeleteUser(r.Context(), email)
	if err != nil {
		slog.Error("failed to delete user", "error", err, "email", email)
		Error(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}
	slog.Info("staff user deleted", "email", email)
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// UpdateUserPassword replaces a staff account's password.
func (h *Handler) UpdateUserPassword(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "email")))
	if email == "" {
		Error(w, http.StatusBadRequest, "email is required")
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Password) < minPasswordLength {
		Error(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cfg.BcryptCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		Error(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	user, err := h.repo.UpdateUserPassword(r.Context(), email, string(hash))
	if err != nil {
		slog.Error("failed to update password", "error", err, "email", email)
		Error(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}
	slog.Info("staff password updated", "email", email)
	JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
