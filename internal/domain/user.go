package domain

import (
	"time"
)

// Role determines what a staff user may do through the API.
type Role string

const (
	RoleAdmin            Role = "ADMIN"
	RoleWarehouseManager Role = "WAREHOUSE_MANAGER"
)

// User is a staff account for the catalog/identity API.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
