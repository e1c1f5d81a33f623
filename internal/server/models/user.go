// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role is the coarse permission level of an identity.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// User is an identity able to authenticate against the service.
type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash string
	FullName     *string
	AvatarURL    *string
	Role         Role
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
