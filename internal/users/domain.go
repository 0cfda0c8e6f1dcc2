package users

import "time"

// User is the administrative projection of an actor account. The
// password hash never leaves the package.
type User struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	PrimariaID  int64      `json:"primaria_id"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateInput carries the fields needed to provision an account.
type CreateInput struct {
	Email      string
	Name       string
	PrimariaID int64
	Password   string
}
