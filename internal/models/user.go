package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

// Valid returns true when the role is one of the supported values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// User represents an application user stored in the users table.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	Email        *string   `db:"email" json:"email,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role   *UserRole
	Search string
}

// CreateUserRequest is the payload for creating a user.
type CreateUserRequest struct {
	Username string   `json:"username" validate:"required,max=64"`
	Password string   `json:"password" validate:"required"`
	Role     UserRole `json:"role" validate:"required,user_role"`
	Email    *string  `json:"email" validate:"omitempty,email"`
}

// UpdateUserRequest applies a partial update. An empty password keeps the stored hash.
type UpdateUserRequest struct {
	Username *string   `json:"username" validate:"omitempty,min=1,max=64"`
	Password string    `json:"password"`
	Role     *UserRole `json:"role" validate:"omitempty,user_role"`
	Email    *string   `json:"email" validate:"omitempty,email"`
}

// Identity is the authenticated caller passed explicitly into every service call.
type Identity struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}
