package models

import "time"

// UserRole represents the available principal roles.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleParent UserRole = "PARENT"
)

// User represents an admin user stored in the users table.
// Parents authenticate against the parents table, not here.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
