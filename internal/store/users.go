package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okunev/lavka/internal/domain"
)

func (s *SQLiteStore) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var createdAt, updatedAt int64
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	u.CreatedAt = time.Unix(createdAt, 0)
	u.UpdatedAt = time.Unix(updatedAt, 0)
	return &u, nil
}

// GetUserByEmail retrieves a staff user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, email, name, password_hash, role, created_at, updated_at FROM users WHERE email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

// CreateUser inserts a staff user and fills in its ID and timestamps.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *domain.User) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, name, password_hash, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Email, u.Name, u.PasswordHash, u.Role, now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user insert id: %w", err)
	}
	u.ID = id
	u.CreatedAt = time.Unix(now.Unix(), 0)
	u.UpdatedAt = u.CreatedAt
	return nil
}

// UpdateUserPassword replaces a user's password hash.
func (s *SQLiteStore) UpdateUserPassword(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE email = ?`,
		passwordHash, time.Now().Unix(), email,
	)
	if err != nil {
		return nil, fmt.Errorf("update user password: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}
	return s.GetUserByEmail(ctx, email)
}

// DeleteUser removes a staff user by email.
func (s *SQLiteStore) DeleteUser(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE email = ?`, email); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	return user, nil
}
