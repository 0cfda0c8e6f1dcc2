package auth

import "time"

// Actor represents a municipal employee account as stored by the
// storage collaborator. The auth core only reads it, except for the
// last-login timestamp which is updated as a side effect of login.
type Actor struct {
	ID           int64
	Email        string
	Name         string
	PrimariaID   int64
	PasswordHash string
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role is a named permission grouping with a coarse access level (1-10).
type Role struct {
	ID          int64
	Name        string
	AccessLevel int
	IsActive    bool
}

// Assignment ties an actor to a role. The assignment carries its own
// active flag: an actor can hold a role that is currently suspended
// without the assignment being deleted.
type Assignment struct {
	Role        Role
	Active      bool
	Permissions []string
}

// RoleClaim is the role information embedded into a signed token.
type RoleClaim struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AccessLevel int    `json:"access_level"`
}
