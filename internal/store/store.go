// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okunev/lavka/internal/domain"
)

// ErrInsufficientStock is reported by stock decrements that would take a
// product's quantity below zero. Use errors.As with *StockShortError to
// recover the shortfall details.
var ErrInsufficientStock = errors.New("insufficient stock")

// StockShortError carries the shortfall details of a failed decrement.
type StockShortError struct {
	ProductID int64
	Available int64
}

func (e *StockShortError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d", e.ProductID, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientStock) match.
func (e *StockShortError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ProductFilter narrows and pages a product listing.
type ProductFilter struct {
	CategoryID int64   // 0 = any category
	Title      string  // substring match on title
	Text       string  // substring match on title or description
	Price      float64 // 0 = any price
	Page       int
	PageSize   int
}

// StockLine is one (product, amount) pair in a batch stock decrement.
type StockLine struct {
	ProductID int64
	Amount    int64
}

// Catalog defines product and category persistence.
type Catalog interface {
	// GetProduct retrieves a product by ID. Returns (nil, nil) if absent.
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// ListProducts returns one page of non-deleted products matching the
	// filter, plus a flag indicating whether a next page exists.
	ListProducts(ctx context.Context, f ProductFilter) ([]*domain.Product, bool, error)

	// CreateProduct inserts a product and fills in its ID and timestamps.
	CreateProduct(ctx context.Context, p *domain.Product) error

	// UpdateProduct updates title, description, price and category.
	// Returns (nil, nil) if the product does not exist.
	UpdateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)

	// SoftDeleteProduct marks a product deleted so it vanishes from
	// listings. Returns (nil, nil) if the product does not exist.
	SoftDeleteProduct(ctx context.Context, id int64) (*domain.Product, error)

	// SetQuantity sets a product's stock to an absolute value.
	// Returns (nil, nil) if the product does not exist.
	SetQuantity(ctx context.Context, id int64, quantity int64) (*domain.Product, error)

	// DecrementStock atomically decrements stock if the remaining quantity
	// stays non-negative, returning the new quantity. Fails with a
	// *StockShortError otherwise, leaving the row untouched.
	DecrementStock(ctx context.Context, id int64, amount int64) (int64, error)

	// DecrementStockBatch applies every decrement inside one transaction.
	// If any line would go negative the whole batch is rolled back and a
	// *StockShortError for the failing line is returned.
	DecrementStockBatch(ctx context.Context, lines []StockLine) error

	// GetCategory retrieves a category by ID. Returns (nil, nil) if absent.
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)

	// ListCategories returns one page of categories plus a has-next flag.
	ListCategories(ctx context.Context, page, pageSize int) ([]*domain.Category, bool, error)

	// CreateCategory inserts a category and fills in its ID and timestamps.
	CreateCategory(ctx context.Context, c *domain.Category) error

	// UpdateCategory renames a category. Returns (nil, nil) if absent.
	UpdateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error)

	// DeleteCategory removes a category; products keep their category_id.
	DeleteCategory(ctx context.Context, id int64) error
}

// Sessions defines chat session persistence.
type Sessions interface {
	// LoadSession retrieves the session for a conversation, creating a
	// default one if absent.
	LoadSession(ctx context.Context, conversationID string) (*domain.Session, error)

	// SaveSession persists the session state.
	SaveSession(ctx context.Context, s *domain.Session) error

	// DeleteSession removes a conversation's session.
	DeleteSession(ctx context.Context, conversationID string) error

	// ListExpiredSessions returns the conversation IDs of sessions idle
	// longer than ttl.
	ListExpiredSessions(ctx context.Context, ttl time.Duration) ([]string, error)

	// CleanupExpiredSessions removes sessions idle longer than ttl and
	// returns how many were deleted.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)
}

// Users defines staff account persistence.
type Users interface {
	// GetUserByEmail retrieves a user. Returns (nil, nil) if absent.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// CreateUser inserts a user and fills in its ID and timestamps.
	CreateUser(ctx context.Context, u *domain.User) error

	// UpdateUserPassword replaces a user's password hash.
	// Returns (nil, nil) if the user does not exist.
	UpdateUserPassword(ctx context.Context, email, passwordHash string) (*domain.User, error)

	// DeleteUser removes a user by email. Returns (nil, nil) if absent.
	DeleteUser(ctx context.Context, email string) (*domain.User, error)
}

// Repository is the full persistence surface of the application.
type Repository interface {
	Catalog
	Sessions
	Users

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
