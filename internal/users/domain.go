package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/pnar-online/pnar-api/internal/roles"
)

// User represents a user account for management.
type User struct {
	ID        uuid.UUID
	Email     string
	FullName  *string
	Role      roles.Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleCheck vets a write against the target's current role. It runs while
// the target row is locked, so the decision and the write see the same role.
type RoleCheck func(current roles.Role) error

// CredentialCheck vets a password change against the target's locked role
// and current password hash.
type CredentialCheck func(current roles.Role, passwordHash string) error

// NewUser carries an account created by an administrator.
type NewUser struct {
	Email        string
	PasswordHash string
	FullName     *string
	Role         roles.Role
	IsActive     bool
}

// ProfileChanges lists the profile fields to overwrite. Nil fields are kept.
type ProfileChanges struct {
	Email    *string
	FullName *string
}
