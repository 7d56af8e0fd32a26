package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/okunev/lavka/internal/domain"
)

type categoryRequest struct {
	Name string `json:"name"`
}

// ListCategories returns one page of categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			Error(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = parsed
	}

	categories, hasNext, err := h.repo.ListCategories(r.Context(), page, 20)
	if err != nil {
		slog.Error("failed to list categories", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"page":       page,
		"has_next":   hasNext,
	})
}

// GetCategory returns one category by ID.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid category id")
		return
	}
	c, err := h.repo.GetCategory(r.Context(), id)
	if err != nil {
		slog.Error("failed to get category", "error", err, "category_id", id)
		Error(w, http.StatusInternalServerError, "failed to get category")
		return
	}
	if c == nil {
		Error(w, http.StatusNotFound, "category not found")
		return
	}
	JSON(w, http.StatusOK, c)
}

// CreateCategory inserts a new category.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}

	c := &domain.Category{Name: name}
	if err := h.repo.CreateCategory(r.Context(), c); err != nil {
		slog.Error("failed to create category", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create category")
		return
	}
	slog.Info("category created", "category_id", c.ID, "name", c.Name)
	JSON(w, http.StatusCreated, c)
}

// UpdateCategory renames a category.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}

	c, err := h.repo.UpdateCategory(r.Context(), &domain.Category{ID: id, Name: name})
	if err != nil {
		slog.Error("failed to update category", "error", err, "category_id", id)
		Error(w, http.StatusInternalServerError, "failed to update category")
		return
	}
	if c == nil {
		Error(w, http.StatusNotFound, "category not found")
		return
	}
	JSON(w, http.StatusOK, c)
}

// DeleteCategory removes a category. Its products stay in the catalog.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid category id")
		return
	}
	if err := h.repo.DeleteCategory(r.Context(), id); err != nil {
		slog.Error("failed to delete category", "error", err, "category_id", id)
		Error(w, http.StatusInternalServerError, "failed to delete category")
		return
	}
	slog.Info("category deleted", "category_id", id)
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
