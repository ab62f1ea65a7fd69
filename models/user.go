package models

import (
	"time"

	"github.com/google/uuid"
)

// Role names known to the portal. Roles are single-valued per user.
const (
	RoleSystemAdmin = "SYSTEM_ADMIN"
	RoleTeacher     = "TEACHER"
	RoleStudent     = "STUDENT"
)

// UserStatus represents the account state of a user
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusInactive  UserStatus = "INACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User represents a portal user account
type User struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          string     `json:"role"`
	Permissions   []string   `json:"permissions"`
	InstitutionID *uuid.UUID `json:"institutionId,omitempty"`
	PasswordHash  string     `json:"-"`
	Status        UserStatus `json:"status"`
	LastLoginAt   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsActive reports whether the account may authenticate
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
