package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicate indicates a unique constraint was hit, e.g. a registered email.
	ErrDuplicate = errors.New("already exists")
	// ErrTooManyAttempts is returned while a login identifier is locked out.
	ErrTooManyAttempts = errors.New("too many attempts")
)
