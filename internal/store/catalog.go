package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/okunev/lavka/internal/domain"
)

const productColumns = `id, title, description, price, quantity, category_id, is_deleted, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	var description sql.NullString
	var categoryID sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&p.ID, &p.Title, &description, &p.Price, &p.Quantity,
		&categoryID, &p.IsDeleted, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan product row: %w", err)
	}

	p.Description = description.String
	p.CategoryID = categoryID.Int64
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// GetProduct retrieves a product by ID.
func (s *SQLiteStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	return scanProduct(s.db.QueryRowContext(ctx, query, id))
}

// ListProducts returns one page of non-deleted products matching the filter.
// It fetches one extra row beyond the page size so the caller gets an explicit
// has-next flag instead of guessing from a full page.
func (s *SQLiteStore) ListProducts(ctx context.Context, f ProductFilter) ([]*domain.Product, bool, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 10
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE is_deleted = 0`
	args := []interface{}{}

	if f.CategoryID != 0 {
		query += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.Title != "" {
		query += ` AND title LIKE ?`
		args = append(args, "%"+f.Title+"%")
	}
	if f.Text != "" {
		query += ` AND (title LIKE ? OR description LIKE ?)`
		args = append(args, "%"+f.Text+"%", "%"+f.Text+"%")
	}
	if f.Price != 0 {
		query += ` AND price = ?`
		args = append(args, f.Price)
	}

	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, f.PageSize+1, (f.Page-1)*f.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("query products: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close product rows", "error", closeErr)
		}
	}()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, false, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate products: %w", err)
	}

	hasNext := len(products) > f.PageSize
	if hasNext {
		products = products[:f.PageSize]
	}
	return products, hasNext, nil
}

// CreateProduct inserts a product and fills in its ID and timestamps.
func (s *SQLiteStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now()
	query := `
	INSERT INTO products (title, description, price, quantity, category_id, is_deleted, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, 0, ?, ?)`

	var description interface{}
	if p.Description != "" {
		description = p.Description
	}
	var categoryID interface{}
	if p.CategoryID != 0 {
		categoryID = p.CategoryID
	}

	res, err := s.db.ExecContext(ctx, query,
		p.Title, description, p.Price, p.Quantity, categoryID,
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("product insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = time.Unix(now.Unix(), 0)
	p.UpdatedAt = p.CreatedAt
	return nil
}

// UpdateProduct updates title, description, price and category.
func (s *SQLiteStore) UpdateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	query := `
	UPDATE products SET title = ?, description = ?, price = ?, category_id = ?, updated_at = ?
	WHERE id = ? AND is_deleted = 0`

	var description interface{}
	if p.Description != "" {
		description = p.Description
	}
	var categoryID interface{}
	if p.CategoryID != 0 {
		categoryID = p.CategoryID
	}

	res, err := s.db.ExecContext(ctx, query,
		p.Title, description, p.Price, categoryID, time.Now().Unix(), p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}
	return s.GetProduct(ctx, p.ID)
}

// SoftDeleteProduct marks a product deleted so it vanishes from listings.
func (s *SQLiteStore) SoftDeleteProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `UPDATE products SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0`
	res, err := s.db.ExecContext(ctx, query, time.Now().Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("soft delete product: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}
	return s.GetProduct(ctx, id)
}

// SetQuantity sets a product's stock to an absolute value.
func (s *SQLiteStore) SetQuantity(ctx context.Context, id int64, quantity int64) (*domain.Product, error) {
	query := `UPDATE products SET quantity = ?, updated_at = ? WHERE id = ? AND is_deleted = 0`
	res, err := s.db.ExecContext(ctx, query, quantity, time.Now().Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("set product quantity: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}
	return s.GetProduct(ctx, id)
}

// DecrementStock atomically decrements stock if the remaining quantity stays
// non-negative. The conditional UPDATE is the compare-and-set that closes the
// check-then-act window between concurrent checkouts.
func (s *SQLiteStore) DecrementStock(ctx context.Context, id int64, amount int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin decrement: %w", err)
	}
	newQty, err := decrementStockTx(ctx, tx, id, amount)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Warn("failed to rollback stock decrement", "error", rbErr, "product_id", id)
		}
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit decrement: %w", err)
	}
	return newQty, nil
}

// DecrementStockBatch applies every decrement inside one transaction, rolling
// the whole batch back if any line would go negative.
func (s *SQLiteStore) DecrementStockBatch(ctx context.Context, lines []StockLine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decrement batch: %w", err)
	}
	for _, line := range lines {
		if _, err := decrementStockTx(ctx, tx, line.ProductID, line.Amount); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Warn("failed to rollback stock batch", "error", rbErr, "product_id", line.ProductID)
			}
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decrement batch: %w", err)
	}
	return nil
}

func decrementStockTx(ctx context.Context, tx *sql.Tx, id int64, amount int64) (int64, error) {
	query := `
	UPDATE products SET quantity = quantity - ?, updated_at = ?
	WHERE id = ? AND is_deleted = 0 AND quantity >= ?`

	res, err := tx.ExecContext(ctx, query, amount, time.Now().Unix(), id, amount)
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		var available int64
		err := tx.QueryRowContext(ctx,
			`SELECT quantity FROM products WHERE id = ? AND is_deleted = 0`, id).Scan(&available)
		if err == sql.ErrNoRows {
			available = 0
		} else if err != nil {
			return 0, fmt.Errorf("read available stock: %w", err)
		}
		return 0, &StockShortError{ProductID: id, Available: available}
	}

	var newQty int64
	if err := tx.QueryRowContext(ctx,
		`SELECT quantity FROM products WHERE id = ?`, id).Scan(&newQty); err != nil {
		return 0, fmt.Errorf("read new stock: %w", err)
	}
	return newQty, nil
}

// GetCategory retrieves a category by ID.
func (s *SQLiteStore) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	query := `SELECT id, name, created_at, updated_at FROM categories WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	var c domain.Category
	var createdAt, updatedAt int64
	err := row.Scan(&c.ID, &c.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan category row: %w", err)
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

// ListCategories returns one page of categories plus a has-next flag.
func (s *SQLiteStore) ListCategories(ctx context.Context, page, pageSize int) ([]*domain.Category, bool, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	query := `SELECT id, name, created_at, updated_at FROM categories ORDER BY id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return nil, false, fmt.Errorf("query categories: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close category rows", "error", closeErr)
		}
	}()

	var categories []*domain.Category
	for rows.Next() {
		var c domain.Category
		var createdAt, updatedAt int64
		if err := rows.Scan(&c.ID, &c.Name, &createdAt, &updatedAt); err != nil {
			return nil, false, fmt.Errorf("scan category row: %w", err)
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		c.UpdatedAt = time.Unix(updatedAt, 0)
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate categories: %w", err)
	}

	hasNext := len(categories) > pageSize
	if hasNext {
		categories = categories[:pageSize]
	}
	return categories, hasNext, nil
}

// CreateCategory inserts a category and fills in its ID and timestamps.
func (s *SQLiteStore) CreateCategory(ctx context.Context, c *domain.Category) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, created_at, updated_at) VALUES (?, ?, ?)`,
		c.Name, now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("category insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = time.Unix(now.Unix(), 0)
	c.UpdatedAt = c.CreatedAt
	return nil
}

// UpdateCategory renames a category.
func (s *SQLiteStore) UpdateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, updated_at = ? WHERE id = ?`,
		c.Name, time.Now().Unix(), c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}
	return s.GetCategory(ctx, c.ID)
}

// DeleteCategory removes a category; its products keep their category_id.
func (s *SQLiteStore) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}
