package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/okunev/lavka/internal/domain"
	"github.com/okunev/lavka/internal/store"
)

type productRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	CategoryID  int64   `json:"category_id"`
}

func (req *productRequest) validate() string {
	if strings.TrimSpace(req.Title) == "" {
		return "title is required"
	}
	if req.Price < 0 {
		return "price must not be negative"
	}
	if req.Quantity < 0 {
		return "quantity must not be negative"
	}
	return ""
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// ListProducts returns one page of non-deleted products.
// Query parameters: category_id, title, text, price, page, page_size.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProductFilter{
		Title:    q.Get("title"),
		Text:     q.Get("text"),
		Page:     1,
		PageSize: 20,
	}
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			Error(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		filter.CategoryID = id
	}
	if v := q.Get("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil || price < 0 {
			Error(w, http.StatusBadRequest, "invalid price")
			return
		}
		filter.Price = price
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			Error(w, http.StatusBadRequest, "invalid page")
			return
		}
		filter.Page = page
	}
	if v := q.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 || size > 100 {
			Error(w, http.StatusBadRequest, "invalid page_size")
			return
		}
		filter.PageSize = size
	}

	products, hasNext, err := h.repo.ListProducts(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list products", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"page":     filter.Page,
		"has_next": hasNext,
	})
}

// GetProduct returns one product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		slog.Error("failed to get product", "error", err, "product_id", id)
		Error(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if p == nil || p.IsDeleted {
		Error(w, http.StatusNotFound, "product not found")
		return
	}
	JSON(w, http.StatusOK, p)
}

// CreateProduct inserts a new product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		Error(w, http.StatusBadRequest, msg)
		return
	}

	p := &domain.Product{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		CategoryID:  req.CategoryID,
	}
	if err := h.repo.CreateProduct(r.Context(), p); err != nil {
		slog.Error("failed to create product", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create product")
		return
	}
	slog.Info("product created", "product_id", p.ID, "title", p.Title)
	JSON(w, http.StatusCreated, p)
}

// UpdateProduct updates title, description, price and category.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		Error(w, http.StatusBadRequest, msg)
		return
	}

	p, err := h.repo.UpdateProduct(r.Context(), &domain.Product{
		ID:          id,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		slog.Error("failed to update product", "error", err, "product_id", id)
		Error(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	if p == nil {
		Error(w, http.StatusNotFound, "product not found")
		return
	}
	JSON(w, http.StatusOK, p)
}

// DeleteProduct soft-deletes a product so it vanishes from listings but
// survives in past receipts.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := h.repo.SoftDeleteProduct(r.Context(), id)
	if err != nil {
		slog.Error("failed to delete product", "error", err, "product_id", id)
		Error(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	if p == nil {
		Error(w, http.StatusNotFound, "product not found")
		return
	}
	slog.Info("product deleted", "product_id", id)
	JSON(w, http.StatusOK, p)
}

// SetProductQuantity sets a product's stock to an absolute value.
func (h *Handler) SetProductQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req struct {
		Quantity int64 `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity < 0 {
		Error(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	p, err := h.repo.SetQuantity(r.Context(), id, req.Quantity)
	if err != nil {
		slog.Error("failed to set product quantity", "error", err, "product_id", id)
		Error(w, http.StatusInternalServerError, "failed to set quantity")
		return
	}
	if p == nil {
		Error(w, http.StatusNotFound, "product not found")
		return
	}
	slog.Info("product quantity set", "product_id", id, "quantity", req.Quantity)
	JSON(w, http.StatusOK, p)
}
