package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/pnar-online/pnar-api/internal/roles"
)

// Account is a user record as needed for sign-in and profile display.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FullName     *string
	Role         roles.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenPair is the credential set handed out at login and registration.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}
