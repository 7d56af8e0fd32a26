// Package domain contains core domain types for the lavka application.
package domain

import (
	"time"
)

// Product represents a catalog item available for ordering.
type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Quantity    int64     `json:"quantity"`
	CategoryID  int64     `json:"category_id,omitempty"`
	IsDeleted   bool      `json:"is_deleted,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InStock returns true if the product has remaining stock.
func (p *Product) InStock() bool {
	return p.Quantity > 0
}

// Category groups products in the catalog.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
