package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pnar-online/pnar-api/internal/authz"
	"github.com/pnar-online/pnar-api/internal/roles"
)

// Identity is the caller of the current request: verified subject plus the
// role resolved for it during this request. It is a value; once attached to a
// request context it is never modified.
type Identity struct {
	Subject uuid.UUID
	Role    roles.Role
}

// AsSubject adapts the identity for policy checks in package authz.
func (id Identity) AsSubject() authz.Subject {
	return authz.Subject{ID: id.Subject, Role: id.Role}
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// FromRequest returns the identity attached by Authenticator.Middleware, or
// ErrNotAuthenticated when the request never completed authentication.
func FromRequest(r *http.Request) (Identity, error) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return Identity{}, ErrNotAuthenticated
	}
	return id, nil
}
